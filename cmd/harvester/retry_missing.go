package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/examvault/harvester/internal/checkpoint"
	"github.com/examvault/harvester/internal/extract"
	"github.com/examvault/harvester/internal/index"
	"github.com/examvault/harvester/internal/types"
)

var (
	retryCategories string
	retryWorkers    int
)

var retryMissingCmd = &cobra.Command{
	Use:   "retry-missing",
	Short: "Re-attempt records that failed extraction or have no artifact",
	Long: `Target the gap set of each category: identifiers with an outstanding
failure record plus discovered identifiers whose artifact is missing on
disk. Successes clear their failure records; records that fail again
keep updated failure records for the next attempt.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)
		remote := newRemoteClient(cfg)

		idx, err := index.Open(cfg.IndexPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: index unavailable, continuing without it: %v\n", err)
			idx = nil
		} else {
			defer idx.Close()
		}

		ecfg := extract.DefaultConfig()
		ecfg.Policy = cfg.Policy()
		if cfg.FetchWorkers > 0 {
			ecfg.Workers = cfg.FetchWorkers
		}
		if retryWorkers > 0 {
			ecfg.Workers = retryWorkers
		}

		eng, err := extract.NewEngine(store, remote, cfg.RecordsDir(), idx, ecfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		for _, cat := range resolveCategories(cfg, retryCategories) {
			ids, err := gapSet(eng, store, cat)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", cat, err)
				continue
			}
			if len(ids) == 0 {
				fmt.Printf("%s: %s\n", cat, green("nothing to retry"))
				continue
			}

			result, err := eng.RunIDs(cmd.Context(), cat, ids)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					fmt.Println("\nInterrupted; partial progress is on disk.")
					return
				}
				fmt.Fprintf(os.Stderr, "Warning: retry %s: %v\n", cat, err)
				continue
			}
			fmt.Printf("\n%s\n%s\n", cyan("=== "+string(cat)+" ==="), result.Summary())
		}
	},
}

// gapSet is the retry target: outstanding failure records plus discovered
// identifiers with no artifact. RunIDs dedupes and re-filters, so overlap
// between the two sources is harmless.
func gapSet(eng *extract.Engine, store *checkpoint.Store, cat types.CategoryCode) ([]types.CandidateID, error) {
	ids, _, err := eng.Pending(cat)
	if err != nil {
		return nil, err
	}

	rec, err := store.Load(cat)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		for _, f := range rec.Failures {
			id, err := types.ParseCandidateID(f.ID)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func init() {
	rootCmd.AddCommand(retryMissingCmd)
	retryMissingCmd.Flags().StringVar(&retryCategories, "categories", "", "Comma-separated category codes (default: configured categories)")
	retryMissingCmd.Flags().IntVar(&retryWorkers, "workers", 0, "Fetch pool size (default from config)")
}
