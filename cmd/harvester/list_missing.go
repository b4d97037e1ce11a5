package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/examvault/harvester/internal/extract"
)

var listMissingCategories string

var listMissingCmd = &cobra.Command{
	Use:   "list-missing",
	Short: "List discovered records with no artifact on disk",
	Long: `Report each category's gap set without touching the network: discovered
identifiers (minus retired) whose artifact is absent, and any outstanding
failure records with their class and attempt count.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)

		// A nil fetcher is fine here: Pending never touches the network.
		eng, err := extract.NewEngine(store, nil, cfg.RecordsDir(), nil, extract.DefaultConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		totalMissing := 0
		for _, cat := range resolveCategories(cfg, listMissingCategories) {
			pending, _, err := eng.Pending(cat)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", cat, err)
				continue
			}
			rec, err := store.Load(cat)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", cat, err)
				continue
			}

			if len(pending) == 0 && (rec == nil || len(rec.Failures) == 0) {
				fmt.Printf("%s: %s\n", cat, green("complete"))
				continue
			}

			fmt.Printf("\n%s\n", cyan("=== "+string(cat)+" ==="))
			for _, id := range pending {
				fmt.Printf("  %s\n", id)
			}
			totalMissing += len(pending)

			if rec != nil && len(rec.Failures) > 0 {
				fmt.Println("  outstanding failures:")
				for _, f := range rec.Failures {
					fmt.Printf("    %s  %s after %d attempt(s): %s\n", f.ID, f.Class, f.Attempts, f.LastError)
				}
			}
		}
		if totalMissing > 0 {
			fmt.Printf("\n%d record(s) missing overall.\n", totalMissing)
		}
	},
}

func init() {
	rootCmd.AddCommand(listMissingCmd)
	listMissingCmd.Flags().StringVar(&listMissingCategories, "categories", "", "Comma-separated category codes (default: configured categories)")
}
