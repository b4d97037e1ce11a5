package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examvault/harvester/internal/types"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 20, cfg.VintageMin)
	assert.Equal(t, 26, cfg.VintageMax)
	assert.Equal(t, 500, cfg.SeqCeiling)
	assert.Equal(t, 32, cfg.ProbeConcurrency)
}

func TestLoadFileOverridesAndFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://bank.example/api
categories: [cv, resp]
kinds: [mcq]
vintage_min: 24
vintage_max: 24
seq_ceiling: 5
max_retries: 2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://bank.example/api", cfg.BaseURL)
	assert.Equal(t, []string{"cv", "resp"}, cfg.Categories)
	assert.Equal(t, 5, cfg.SeqCeiling)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, "data", cfg.DataDir, "unset fields keep their defaults")
	assert.Equal(t, 8, cfg.RateLimitRetries)
}

func TestLoadBrokenFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted vintages", func(c *Config) { c.VintageMin, c.VintageMax = 25, 24 }},
		{"zero ceiling", func(c *Config) { c.SeqCeiling = 0 }},
		{"huge ceiling", func(c *Config) { c.SeqCeiling = 50000 }},
		{"unknown category", func(c *Config) { c.Categories = []string{"bogus"} }},
		{"unknown kind", func(c *Config) { c.Kinds = []string{"essay"} }},
		{"bad duration", func(c *Config) { c.Cooldown = "soon" }},
		{"excess concurrency", func(c *Config) { c.ProbeConcurrency = 5000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvOverridesSessionToken(t *testing.T) {
	t.Setenv("HARVESTER_SESSION_TOKEN", "from-env")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SessionToken)
}

func TestDerivedHelpers(t *testing.T) {
	cfg := Default()
	cfg.Categories = []string{"cv"}
	cfg.Kinds = []string{"mcq", "saq"}
	cfg.VintageMin, cfg.VintageMax = 24, 24
	cfg.SeqCeiling = 10
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []types.CategoryCode{"cv"}, cfg.CategoryList())

	space := cfg.Space()
	require.NoError(t, space.Validate())
	assert.Equal(t, 2*10, space.Size())

	policy := cfg.Policy()
	assert.Equal(t, time.Second, policy.InitialDelay)
	assert.Equal(t, 30*time.Second, policy.MaxDelay)
	assert.Equal(t, 4, policy.TransientBudget)
	assert.Equal(t, 60*time.Second, policy.Cooldown)

	assert.Equal(t, filepath.Join("data", "checkpoints"), cfg.CheckpointsDir())
	assert.Equal(t, filepath.Join("data", "records"), cfg.RecordsDir())
}

func TestAllCategoriesWhenUnset(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.CategoryList(), 16)
	assert.Len(t, cfg.Space().Kinds, 6)
}
