package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"discovery-stats"},
	Short:   "Show per-category discovery statistics",
	Long: `Render the discovery metadata for every checkpointed category: how many
candidates were probed, how many records were confirmed, the observed hit
rate, the kinds found and when the category was last updated.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)

		summary, err := store.Summary()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(summary) == 0 {
			fmt.Println("No discovery checkpoints yet; run 'harvester discover' first.")
			return
		}

		cats := make([]string, 0, len(summary))
		for cat := range summary {
			cats = append(cats, cat)
		}
		sort.Strings(cats)

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s\n", bold(fmt.Sprintf("%-6s %10s %7s %9s %-22s %s",
			"CAT", "DISCOVERED", "TESTED", "HIT RATE", "KINDS", "UPDATED")))
		totalDiscovered, totalTested := 0, 0
		for _, cat := range cats {
			cs := summary[cat]
			kinds := strings.Join(cs.KindsFound, ",")
			if kinds == "" {
				kinds = "-"
			}
			fmt.Printf("%-6s %10d %7d %8.1f%% %-22s %s\n",
				cat, cs.DiscoveredCount, cs.CandidatesTested, cs.HitRate*100,
				kinds, cs.Timestamp.Local().Format("2006-01-02 15:04"))
			totalDiscovered += cs.DiscoveredCount
			totalTested += cs.CandidatesTested
		}
		fmt.Printf("\n%d categories, %d discovered across %d probed candidates.\n",
			len(cats), totalDiscovered, totalTested)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
