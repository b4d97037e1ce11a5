package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/examvault/harvester/internal/config"
	"github.com/examvault/harvester/internal/discovery"
)

var (
	discoverCategories  string
	discoverKinds       []string
	discoverVintageMin  int
	discoverVintageMax  int
	discoverSeqCeiling  int
	discoverConcurrency int
	discoverRefresh     bool
	discoverNoShuffle   bool
	discoverSeed        int64
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Probe the candidate space and record which identifiers exist",
	Long: `Probe the candidate identifier space for each category and persist the
confirmed-existing set into the checkpoint store.

Non-refresh runs only probe candidates without a prior definitive
answer, so re-running an up-to-date category costs zero probes. Use
--refresh to discard prior results and rebuild the confirmed set from
scratch (retirement and failure records survive a refresh).

Examples:
  harvester discover                          # all configured categories
  harvester discover --categories=cv,resp     # two categories
  harvester discover --kinds=mcq --vintage-min=24 --vintage-max=24
  harvester discover --refresh --categories=cv`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		applyDiscoverFlags(cfg)

		store := openStore(cfg)
		remote := newRemoteClient(cfg)

		dcfg := discovery.DefaultConfig()
		dcfg.Concurrency = cfg.ProbeConcurrency
		dcfg.ProbeRate = cfg.ProbeRate
		dcfg.Refresh = discoverRefresh
		dcfg.Shuffle = !discoverNoShuffle
		dcfg.ShuffleSeed = discoverSeed
		if dcfg.ShuffleSeed == 0 {
			dcfg.ShuffleSeed = time.Now().UnixNano()
		}
		dcfg.Policy = cfg.Policy()
		if discoverConcurrency > 0 {
			dcfg.Concurrency = discoverConcurrency
		}

		eng, err := discovery.NewEngine(store, remote, cfg.Space(), dcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		interrupted := false
		for _, cat := range resolveCategories(cfg, discoverCategories) {
			result, err := eng.Run(cmd.Context(), cat)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					interrupted = true
					break
				}
				// Per-category trouble is reported and the run moves on.
				fmt.Fprintf(os.Stderr, "Warning: discovery %s: %v\n", cat, err)
				continue
			}
			fmt.Printf("\n%s\n%s\n", cyan("=== "+string(cat)+" ==="), result.Summary())
		}
		if interrupted {
			fmt.Println("\nInterrupted; partial progress is checkpointed and the next run resumes from it.")
		}
	},
}

// applyDiscoverFlags lets command-line flags narrow the configured space.
func applyDiscoverFlags(cfg *config.Config) {
	if len(discoverKinds) > 0 {
		cfg.Kinds = discoverKinds
	}
	if discoverVintageMin > 0 {
		cfg.VintageMin = discoverVintageMin
	}
	if discoverVintageMax > 0 {
		cfg.VintageMax = discoverVintageMax
	}
	if discoverSeqCeiling > 0 {
		cfg.SeqCeiling = discoverSeqCeiling
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().StringVar(&discoverCategories, "categories", "", "Comma-separated category codes (default: configured categories)")
	discoverCmd.Flags().StringSliceVar(&discoverKinds, "kinds", nil, "Record kinds to enumerate (default: configured kinds)")
	discoverCmd.Flags().IntVar(&discoverVintageMin, "vintage-min", 0, "Lowest vintage to enumerate")
	discoverCmd.Flags().IntVar(&discoverVintageMax, "vintage-max", 0, "Highest vintage to enumerate")
	discoverCmd.Flags().IntVar(&discoverSeqCeiling, "seq-ceiling", 0, "Sequence-number ceiling per combination")
	discoverCmd.Flags().IntVar(&discoverConcurrency, "concurrency", 0, "Probe pool size (default from config)")
	discoverCmd.Flags().BoolVar(&discoverRefresh, "refresh", false, "Discard prior results and re-probe the full space")
	discoverCmd.Flags().BoolVar(&discoverNoShuffle, "no-shuffle", false, "Probe in sequential order instead of shuffled")
	discoverCmd.Flags().Int64Var(&discoverSeed, "seed", 0, "Shuffle seed (0 = time-based)")
}
