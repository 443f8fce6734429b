package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"browsernerd/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCategoryLoggersAreNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core, config.LoggingConfig{Level: "debug"})

	l.Get(CategorySession).Info("launched", zap.String("kind", "chromium"))
	l.Get(CategoryEvidence).Warn("capture failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "session", entries[0].LoggerName)
	assert.Equal(t, "chromium", entries[0].ContextMap()["kind"])
	assert.Equal(t, "evidence", entries[1].LoggerName)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core, config.LoggingConfig{
		Level:      "debug",
		Categories: map[string]bool{"browser": false},
	})

	l.Get(CategoryBrowser).Error("should vanish")
	l.Get(CategoryDispatch).Info("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestSetLevelAppliesToExistingLoggers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core, config.LoggingConfig{Level: "info"})
	session := l.Get(CategorySession)

	session.Debug("hidden")
	assert.Equal(t, 0, logs.Len())

	l.SetLevel(zapcore.DebugLevel)
	session.Debug("visible")
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, l.Level())
	assert.True(t, l.Enabled(zapcore.DebugLevel))
}

func TestGetIsCachedAndConcurrent(t *testing.T) {
	l := NewNop()
	var wg sync.WaitGroup
	results := make([]*zap.Logger, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Get(CategoryMCP)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "browsernerd.log")
	l, err := New(config.LoggingConfig{Level: "info", File: path})
	require.NoError(t, err)

	l.Get(CategoryBoot).Info("starting up")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "starting up"))
	assert.True(t, strings.Contains(string(data), `"logger":"boot"`))
}
