// Command harvester drives corpus extraction from the remote exam bank:
// discovery of existing record identifiers, extraction of their payloads,
// and validation of the on-disk output. Every subcommand is a thin shim
// over one core operation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/examvault/harvester/internal/checkpoint"
	"github.com/examvault/harvester/internal/client"
	"github.com/examvault/harvester/internal/config"
	"github.com/examvault/harvester/internal/types"
)

var (
	flagConfig  string
	flagDataDir string
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Harvest the exam bank corpus: discover, extract, validate",
	Long: `harvester pulls a complete, structured corpus out of the remote exam
bank. The bank addresses records by combinatorial identifiers with no
usable listing endpoint, so the pipeline is:

  discover   probe the candidate identifier space per category
  extract    fetch and normalize every discovered record
  validate   reconcile on-disk output against discovery state

plus the gap-closing helpers list-missing, retry-missing and stats.

A session token must be provisioned externally and supplied via the
config file or HARVESTER_SESSION_TOKEN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "harvester.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Override the data directory")
}

func main() {
	// SIGINT/SIGTERM cancel the run context; engines finish in-flight
	// calls and persist atomically, so interruption never corrupts state.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration; any failure here is a
// configuration-level error and exits non-zero.
func loadConfig() *config.Config {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	return cfg
}

// openStore opens the checkpoint store or exits.
func openStore(cfg *config.Config) *checkpoint.Store {
	store, err := checkpoint.NewStore(cfg.CheckpointsDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return store
}

// newRemoteClient builds the authenticated client or exits; a missing or
// unusable credential is a configuration-level failure.
func newRemoteClient(cfg *config.Config) *client.HTTPClient {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		BaseURL:      cfg.BaseURL,
		SessionToken: cfg.SessionToken,
		ProbeTimeout: cfg.ProbeTimeoutDuration(),
		FetchTimeout: cfg.FetchTimeoutDuration(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return c
}

// resolveCategories applies a --categories flag value over the config.
func resolveCategories(cfg *config.Config, flagValue string) []types.CategoryCode {
	if flagValue == "" {
		return cfg.CategoryList()
	}
	var cats []types.CategoryCode
	for _, raw := range strings.Split(flagValue, ",") {
		cat := types.CategoryCode(strings.TrimSpace(raw))
		if cat == "" {
			continue
		}
		if !types.ValidCategory(cat) {
			fmt.Fprintf(os.Stderr, "Error: unknown category %q\n", cat)
			os.Exit(1)
		}
		cats = append(cats, cat)
	}
	return cats
}
