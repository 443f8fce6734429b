package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("BROWSERNERD_ARTIFACTS_DIR sets root", func(t *testing.T) {
		t.Setenv("BROWSERNERD_ARTIFACTS_DIR", "/var/evidence")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/var/evidence", cfg.Artifacts.Root)
	})

	t.Run("BROWSERNERD_HEADLESS parses bools", func(t *testing.T) {
		t.Setenv("BROWSERNERD_HEADLESS", "true")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Browser.Headless)
	})

	t.Run("BROWSERNERD_HEADLESS ignores garbage", func(t *testing.T) {
		t.Setenv("BROWSERNERD_HEADLESS", "sometimes")

		cfg := DefaultConfig()
		cfg.Browser.Headless = true
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Browser.Headless)
	})

	t.Run("BROWSERNERD_LOG_LEVEL is lowercased", func(t *testing.T) {
		t.Setenv("BROWSERNERD_LOG_LEVEL", "DEBUG")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("metrics and index", func(t *testing.T) {
		t.Setenv("BROWSERNERD_METRICS_ADDR", "127.0.0.1:9464")
		t.Setenv("BROWSERNERD_INDEX", "/tmp/idx.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
		assert.Equal(t, "/tmp/idx.db", cfg.Artifacts.IndexPath)
	})

	t.Run("empty env leaves defaults", func(t *testing.T) {
		t.Setenv("BROWSERNERD_ARTIFACTS_DIR", "")
		t.Setenv("BROWSERNERD_LOG_LEVEL", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, ".", cfg.Artifacts.Root)
		assert.Equal(t, "info", cfg.Logging.Level)
	})
}
