package surrealshift

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surrealshift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_port: "9090"
initial_phase: 2
journal: bolt
journal_path: /var/lib/surrealshift/journal.db
reconcile_interval: 30s
surrealdb_ns: shop
`), 0o600))
	t.Setenv("SURREALSHIFT_PHASE", "3")
	t.Setenv("SURREALDB_DB", "catalog")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 3, cfg.InitialPhase, "environment wins over the file")
	assert.Equal(t, JournalBolt, cfg.Journal)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, time.Minute, cfg.ReconcileGrace)
	assert.Equal(t, "shop", cfg.SurrealDBNS)
	assert.Equal(t, "catalog", cfg.SurrealDBDB)
	assert.Equal(t, "info", cfg.LogLevel, "defaults survive")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("initial_phase: [1"), 0o600))
		_, err := LoadConfig(path)
		require.Error(t, err)
	})
	t.Run("phase not a number", func(t *testing.T) {
		t.Setenv("SURREALSHIFT_PHASE", "three")
		_, err := LoadConfig("")
		require.ErrorContains(t, err, "SURREALSHIFT_PHASE")
	})
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"phase too low", func(c *Config) { c.InitialPhase = 0 }, "InitialPhase"},
		{"phase too high", func(c *Config) { c.InitialPhase = 6 }, "InitialPhase"},
		{"unknown journal", func(c *Config) { c.Journal = "redis" }, "Journal"},
		{"bolt without path", func(c *Config) { c.Journal = JournalBolt; c.JournalPath = "" }, "JournalPath"},
		{"port not numeric", func(c *Config) { c.ServerPort = "http" }, "ServerPort"},
		{"missing dsn", func(c *Config) { c.PostgresDSN = "" }, "PostgresDSN"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"negative interval", func(c *Config) { c.ReconcileInterval = -time.Second }, "ReconcileInterval"},
		{"negative grace", func(c *Config) { c.ReconcileGrace = -time.Second }, "ReconcileGrace"},
		{"postgres journal in memory mode", func(c *Config) { c.Memory = true; c.Journal = JournalPostgres }, "postgres journal"},
		{"memory mode needs no dsn", func(c *Config) { c.Memory = true; c.PostgresDSN = ""; c.SurrealDBURL = "" }, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}
