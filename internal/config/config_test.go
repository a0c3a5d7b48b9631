package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Explorer.MaxPages)
	assert.InDelta(t, 0.3, cfg.Explorer.KeepThreshold, 1e-9)
	assert.Equal(t, "path", cfg.Explorer.ScopeMode)
	assert.Equal(t, "priority", cfg.Explorer.FrontierOrder)
	assert.Equal(t, "gpt-4o-mini", cfg.Classifier.Model)
	assert.Equal(t, 30000, cfg.Classifier.TokensPerMinute)
	assert.Equal(t, 8000, cfg.Classifier.ContentCharBudget)
	assert.Equal(t, 24000, cfg.Classifier.AnalysisCharBudget)
	assert.True(t, cfg.Fetcher.RespectRobots)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
explorer:
  max_pages: 50
  scope_mode: host
classifier:
  model: gpt-4o
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Explorer.MaxPages)
	assert.Equal(t, "host", cfg.Explorer.ScopeMode)
	assert.Equal(t, "gpt-4o", cfg.Classifier.Model)
	// Untouched keys keep their defaults.
	assert.Equal(t, "priority", cfg.Explorer.FrontierOrder)
	assert.InDelta(t, 0.3, cfg.Explorer.KeepThreshold, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero max pages", func(c *Config) { c.Explorer.MaxPages = 0 }, true},
		{"bad scope mode", func(c *Config) { c.Explorer.ScopeMode = "subdomain" }, true},
		{"bad frontier order", func(c *Config) { c.Explorer.FrontierOrder = "random" }, true},
		{"zero token budget", func(c *Config) { c.Classifier.TokensPerMinute = 0 }, true},
		{"zero char budget", func(c *Config) { c.Classifier.ContentCharBudget = 0 }, true},
		{"zero analysis char budget", func(c *Config) { c.Classifier.AnalysisCharBudget = 0 }, true},
		{"host scope is valid", func(c *Config) { c.Explorer.ScopeMode = "host" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
