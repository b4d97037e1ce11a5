package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/examvault/harvester/internal/extract"
	"github.com/examvault/harvester/internal/index"
)

var (
	extractCategories string
	extractWorkers    int
	extractRefresh    bool
	extractNoIndex    bool
	extractReindex    bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch and normalize every discovered record",
	Long: `Fetch the payload of every discovered identifier, normalize it and
write one JSON artifact per record under the records directory.

Artifact presence is the source of truth for "already extracted": a
re-run over a fully extracted category touches the network zero times.
Retired records are remembered in the checkpoint and never re-fetched.
Per-record failures are recorded and reported but never fail the run.

Examples:
  harvester extract                       # all categories with checkpoints
  harvester extract --categories=cv
  harvester extract --refresh-existing    # re-fetch even existing artifacts`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)
		remote := newRemoteClient(cfg)

		var idx *index.Index
		if !extractNoIndex {
			var err error
			idx, err = index.Open(cfg.IndexPath())
			if err != nil {
				// The index is a rebuildable cache; losing it degrades
				// lookups, not correctness.
				fmt.Fprintf(os.Stderr, "Warning: index unavailable, continuing without it: %v\n", err)
			} else {
				defer idx.Close()
			}
		}
		if extractReindex && idx != nil {
			n, err := idx.Rebuild(cmd.Context(), cfg.RecordsDir(), resolveCategories(cfg, extractCategories))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: rebuilding index: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Index rebuilt from %d artifact(s).\n", n)
		}

		ecfg := extract.DefaultConfig()
		ecfg.RefreshExisting = extractRefresh
		ecfg.Policy = cfg.Policy()
		if cfg.FetchWorkers > 0 {
			ecfg.Workers = cfg.FetchWorkers
		}
		if extractWorkers > 0 {
			ecfg.Workers = extractWorkers
		}

		eng, err := extract.NewEngine(store, remote, cfg.RecordsDir(), idx, ecfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		interrupted := false
		totalFailed := 0
		for _, cat := range resolveCategories(cfg, extractCategories) {
			result, err := eng.Run(cmd.Context(), cat)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					interrupted = true
					break
				}
				fmt.Fprintf(os.Stderr, "Warning: extraction %s: %v\n", cat, err)
				continue
			}
			fmt.Printf("\n%s\n%s\n", cyan("=== "+string(cat)+" ==="), result.Summary())
			totalFailed += result.Failed
		}
		if interrupted {
			fmt.Println("\nInterrupted; completed artifacts are on disk and the next run skips them.")
			return
		}
		if totalFailed > 0 {
			fmt.Printf("\n%s\n", yellow(fmt.Sprintf(
				"%d record(s) failed after retries; run 'harvester retry-missing' to retry them.", totalFailed)))
		}
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractCategories, "categories", "", "Comma-separated category codes (default: configured categories)")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 0, "Fetch pool size (default from config)")
	extractCmd.Flags().BoolVar(&extractRefresh, "refresh-existing", false, "Re-fetch records that already have artifacts")
	extractCmd.Flags().BoolVar(&extractNoIndex, "no-index", false, "Skip maintaining the sqlite extraction index")
	extractCmd.Flags().BoolVar(&extractReindex, "rebuild-index", false, "Rebuild the extraction index from the artifact tree before fetching")
}
