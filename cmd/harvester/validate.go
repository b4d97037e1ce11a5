package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/examvault/harvester/internal/validate"
)

var validateReportPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Reconcile on-disk artifacts against discovery state",
	Long: `Cross-check every category's extracted artifacts against its discovery
checkpoint: coverage (discovered minus retired vs. on disk), parseability
and schema conformance of each artifact.

Validation never mutates corpus state. Findings go into the report file
(overwritten each run) and a summary is printed; the command exits zero
even when issues are found, since issues are data to act on, not a
process failure.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)

		report, err := validate.New(store, cfg.RecordsDir()).Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		reportPath := cfg.ReportPath()
		if validateReportPath != "" {
			reportPath = validateReportPath
		}
		if err := validate.WriteReport(reportPath, report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: writing report: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("Validation report %s (%d categories)\n\n", report.RunID, len(report.Categories))
		fmt.Printf("%-6s %10s %9s %8s %9s %7s\n", "CAT", "DISCOVERED", "EXTRACTED", "RETIRED", "COVERAGE", "ISSUES")
		for _, cr := range report.Categories {
			coverage := fmt.Sprintf("%.1f%%", cr.CoveragePct*100)
			switch cr.Coverage {
			case validate.CoverageFull:
				coverage = green(coverage)
			case validate.CoverageOver:
				coverage = yellow(coverage + " (over)")
			default:
				coverage = red(coverage)
			}
			fmt.Printf("%-6s %10d %9d %8d %9s %7d\n",
				cr.Category, cr.Discovered, cr.Extracted, cr.Retired, coverage, cr.Issues)
		}

		fmt.Printf("\nTotals: %d discovered, %d extracted, %d retired\n",
			report.TotalDiscovered, report.TotalExtracted, report.TotalRetired)
		if report.TotalIssues == 0 {
			fmt.Println(green("No issues found."))
		} else {
			fmt.Println(yellow(fmt.Sprintf("%d issue(s) found; details in %s", report.TotalIssues, reportPath)))
			for _, issue := range report.Issues {
				label := string(issue.Kind)
				if issue.Warning {
					label += " (warning)"
				}
				target := issue.Category
				if issue.ID != "" {
					target = issue.ID
				}
				fmt.Printf("  %-16s %-18s %s\n", label, target, issue.Detail)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateReportPath, "report", "", "Report output path (default: <data-dir>/validation-report.json)")
}
