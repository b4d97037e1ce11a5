// Package index maintains a sqlite index of extracted artifacts. Artifact
// presence on disk remains the ground truth for "already extracted"; the
// index is a cheap, shareable cache over it that extraction maintains and
// list-missing reads, and Rebuild restores it from the artifact tree at
// any time.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/examvault/harvester/internal/record"
	"github.com/examvault/harvester/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS extracted (
    id           TEXT PRIMARY KEY,
    category     TEXT NOT NULL,
    path         TEXT NOT NULL,
    extracted_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extracted_category ON extracted(category);
`

// Index wraps the sqlite handle.
type Index struct {
	db *sql.DB
}

// Open opens (or creates) the index database and initializes the schema.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("index: creating directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("index: opening %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: initializing schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database handle.
func (i *Index) Close() error {
	return i.db.Close()
}

// Add upserts one extracted artifact.
func (i *Index) Add(ctx context.Context, id types.CandidateID, path string, extractedAt time.Time) error {
	_, err := sq.Insert("extracted").
		Options("OR REPLACE").
		Columns("id", "category", "path", "extracted_at").
		Values(id.String(), string(id.Category), path, extractedAt.UTC()).
		RunWith(i.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("index: adding %s: %w", id, err)
	}
	return nil
}

// Remove deletes one entry. Absent entries are not an error.
func (i *Index) Remove(ctx context.Context, id types.CandidateID) error {
	_, err := sq.Delete("extracted").
		Where(sq.Eq{"id": id.String()}).
		RunWith(i.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("index: removing %s: %w", id, err)
	}
	return nil
}

// Has reports whether an identifier is indexed.
func (i *Index) Has(ctx context.Context, id types.CandidateID) (bool, error) {
	var one int
	err := sq.Select("1").
		From("extracted").
		Where(sq.Eq{"id": id.String()}).
		RunWith(i.db).
		QueryRowContext(ctx).
		Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: checking %s: %w", id, err)
	}
	return true, nil
}

// IDs returns the indexed identifiers for one category, sorted.
func (i *Index) IDs(ctx context.Context, category types.CategoryCode) ([]types.CandidateID, error) {
	rows, err := sq.Select("id").
		From("extracted").
		Where(sq.Eq{"category": string(category)}).
		OrderBy("id").
		RunWith(i.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: listing %s: %w", category, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []types.CandidateID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("index: scanning: %w", err)
		}
		id, err := types.ParseCandidateID(raw)
		if err != nil {
			// A malformed row is skipped, not fatal; Rebuild clears it.
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of indexed artifacts for one category.
func (i *Index) Count(ctx context.Context, category types.CategoryCode) (int, error) {
	var n int
	err := sq.Select("COUNT(*)").
		From("extracted").
		Where(sq.Eq{"category": string(category)}).
		RunWith(i.db).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: counting %s: %w", category, err)
	}
	return n, nil
}

// Rebuild drops the index contents and rescans the artifact tree for the
// given categories. Returns the number of artifacts indexed.
func (i *Index) Rebuild(ctx context.Context, recordsDir string, categories []types.CategoryCode) (int, error) {
	if _, err := sq.Delete("extracted").RunWith(i.db).ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("index: clearing: %w", err)
	}

	total := 0
	for _, cat := range categories {
		ids, err := record.ListCategory(recordsDir, cat)
		if err != nil {
			return total, err
		}
		for _, id := range ids {
			path := record.Path(recordsDir, id)
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if err := i.Add(ctx, id, path, info.ModTime()); err != nil {
				return total, err
			}
			total++
		}
	}
	return total, nil
}
