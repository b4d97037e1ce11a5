// Package config loads the harvester configuration file and applies
// defaults and range validation. A missing file yields the defaults; a
// present-but-broken file is a configuration error and aborts the run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/examvault/harvester/internal/backoff"
	"github.com/examvault/harvester/internal/idspace"
	"github.com/examvault/harvester/internal/types"
)

// Config is the structure of harvester.yaml.
type Config struct {
	// BaseURL of the bank's record endpoint.
	BaseURL string `yaml:"base_url"`
	// SessionToken is the pre-provisioned credential. The
	// HARVESTER_SESSION_TOKEN environment variable overrides it so the
	// token can stay out of the file.
	SessionToken string `yaml:"session_token"`

	// DataDir holds checkpoints/, records/, the extraction index and the
	// validation report. Default: ./data
	DataDir string `yaml:"data_dir"`

	// Categories to operate on; empty means every registered category.
	Categories []string `yaml:"categories"`
	// Kinds to enumerate; empty means every known kind.
	Kinds []string `yaml:"kinds"`

	// Candidate space bounds. Range: vintages 0-99, ceiling 1-10000.
	VintageMin int `yaml:"vintage_min"`
	VintageMax int `yaml:"vintage_max"`
	SeqCeiling int `yaml:"seq_ceiling"`

	// Probe pool tuning. Probes are cheap; default 32 workers at 50/s.
	ProbeConcurrency int     `yaml:"probe_concurrency"`
	ProbeRate        float64 `yaml:"probe_rate"`
	// FetchWorkers bounds the fetch pool; 0 derives it from available
	// parallelism (capped at 12).
	FetchWorkers int `yaml:"fetch_workers"`

	// Retry budgets and delays. Durations are strings like "30s".
	MaxRetries       int    `yaml:"max_retries"`
	RateLimitRetries int    `yaml:"rate_limit_retries"`
	InitialBackoff   string `yaml:"initial_backoff"`
	MaxBackoff       string `yaml:"max_backoff"`
	Cooldown         string `yaml:"cooldown"`

	// Per-call timeouts, separate from any run-level lifetime.
	ProbeTimeout string `yaml:"probe_timeout"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:          "data",
		VintageMin:       20,
		VintageMax:       26,
		SeqCeiling:       500,
		ProbeConcurrency: 32,
		ProbeRate:        50,
		MaxRetries:       4,
		RateLimitRetries: 8,
		InitialBackoff:   "1s",
		MaxBackoff:       "30s",
		Cooldown:         "60s",
		ProbeTimeout:     "5s",
		FetchTimeout:     "30s",
	}
}

// Load reads the config file at path, or the defaults if it does not
// exist. Defaults also fill any field the file leaves unset.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.VintageMax == 0 && c.VintageMin == 0 {
		c.VintageMin, c.VintageMax = def.VintageMin, def.VintageMax
	}
	if c.SeqCeiling == 0 {
		c.SeqCeiling = def.SeqCeiling
	}
	if c.ProbeConcurrency == 0 {
		c.ProbeConcurrency = def.ProbeConcurrency
	}
	if c.ProbeRate == 0 {
		c.ProbeRate = def.ProbeRate
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RateLimitRetries == 0 {
		c.RateLimitRetries = def.RateLimitRetries
	}
	if c.InitialBackoff == "" {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff == "" {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.Cooldown == "" {
		c.Cooldown = def.Cooldown
	}
	if c.ProbeTimeout == "" {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.FetchTimeout == "" {
		c.FetchTimeout = def.FetchTimeout
	}
}

func (c *Config) applyEnv() {
	if token := os.Getenv("HARVESTER_SESSION_TOKEN"); token != "" {
		c.SessionToken = token
	}
}

// Validate checks ranges and referenced registry entries. Network
// credentials are checked by the commands that need them, so read-only
// commands work without a session.
func (c *Config) Validate() error {
	if c.VintageMin < 0 || c.VintageMax > 99 || c.VintageMax < c.VintageMin {
		return fmt.Errorf("config: vintage range [%d, %d] out of bounds (0-99, min <= max)", c.VintageMin, c.VintageMax)
	}
	if c.SeqCeiling < 1 || c.SeqCeiling > 10000 {
		return fmt.Errorf("config: seq_ceiling %d out of range (1-10000)", c.SeqCeiling)
	}
	if c.ProbeConcurrency < 1 || c.ProbeConcurrency > 256 {
		return fmt.Errorf("config: probe_concurrency %d out of range (1-256)", c.ProbeConcurrency)
	}
	if c.FetchWorkers < 0 || c.FetchWorkers > 64 {
		return fmt.Errorf("config: fetch_workers %d out of range (0-64)", c.FetchWorkers)
	}
	for _, cat := range c.Categories {
		if !types.ValidCategory(types.CategoryCode(cat)) {
			return fmt.Errorf("config: unknown category %q", cat)
		}
	}
	for _, kind := range c.Kinds {
		if !types.ValidKind(types.RecordKind(kind)) {
			return fmt.Errorf("config: unknown kind %q", kind)
		}
	}
	for _, field := range []struct{ name, value string }{
		{"initial_backoff", c.InitialBackoff},
		{"max_backoff", c.MaxBackoff},
		{"cooldown", c.Cooldown},
		{"probe_timeout", c.ProbeTimeout},
		{"fetch_timeout", c.FetchTimeout},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("config: bad %s %q: %w", field.name, field.value, err)
		}
	}
	return nil
}

func (c *Config) duration(s string) time.Duration {
	d, _ := time.ParseDuration(s) // validated already
	return d
}

// CategoryList resolves the configured categories, defaulting to all.
func (c *Config) CategoryList() []types.CategoryCode {
	if len(c.Categories) == 0 {
		return types.AllCategories()
	}
	out := make([]types.CategoryCode, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = types.CategoryCode(cat)
	}
	return out
}

// Space builds the identifier space the configuration describes.
func (c *Config) Space() idspace.Space {
	kinds := make([]types.RecordKind, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		kinds = append(kinds, types.RecordKind(k))
	}
	if len(kinds) == 0 {
		kinds = append(kinds, types.AllKinds...)
	}
	return idspace.Space{
		Kinds:      kinds,
		VintageMin: types.Vintage(c.VintageMin),
		VintageMax: types.Vintage(c.VintageMax),
		SeqCeiling: c.SeqCeiling,
	}
}

// Policy builds the retry policy the configuration describes.
func (c *Config) Policy() backoff.Policy {
	return backoff.Policy{
		InitialDelay:    c.duration(c.InitialBackoff),
		MaxDelay:        c.duration(c.MaxBackoff),
		Multiplier:      2.0,
		TransientBudget: c.MaxRetries,
		RateLimitBudget: c.RateLimitRetries,
		Cooldown:        c.duration(c.Cooldown),
	}
}

// ProbeTimeoutDuration and FetchTimeoutDuration return the per-call
// deadlines.
func (c *Config) ProbeTimeoutDuration() time.Duration { return c.duration(c.ProbeTimeout) }
func (c *Config) FetchTimeoutDuration() time.Duration { return c.duration(c.FetchTimeout) }

// Paths under DataDir.
func (c *Config) CheckpointsDir() string { return filepath.Join(c.DataDir, "checkpoints") }
func (c *Config) RecordsDir() string     { return filepath.Join(c.DataDir, "records") }
func (c *Config) IndexPath() string      { return filepath.Join(c.DataDir, "index.db") }
func (c *Config) ReportPath() string     { return filepath.Join(c.DataDir, "validation-report.json") }
