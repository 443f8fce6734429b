// Package logging provides category-scoped zap loggers for browsernerd.
// Output always goes to stderr (stdout carries the MCP transport), with an
// optional file sink. The level is atomic so a config reload can change it
// without rebuilding loggers.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"browsernerd/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and shutdown
	CategorySession   Category = "session"   // Session lifecycle transitions
	CategoryEvidence  Category = "evidence"  // Failure screenshot capture
	CategoryDispatch  Category = "dispatch"  // Command routing and envelopes
	CategoryBrowser   Category = "browser"   // Engine, recording context, page events
	CategoryArtifacts Category = "artifacts" // Artifact layout and index
	CategoryMCP       Category = "mcp"       // MCP transport
	CategoryConfig    Category = "config"    // Config load and reload
	CategoryMetrics   Category = "metrics"   // Metrics endpoint
)

// Logger is the root logger plus per-category children.
type Logger struct {
	root   *zap.Logger
	level  zap.AtomicLevel
	cfg    config.LoggingConfig
	mu     sync.RWMutex
	byName map[Category]*zap.Logger
}

// New builds a production zap logger writing to stderr (and cfg.File when
// set) at the configured level.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level := zap.NewAtomicLevelAt(cfg.ZapLevel())

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.File)
	}

	root, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return wrap(root, level, cfg), nil
}

// NewWithCore wraps an existing core, mostly for tests with zaptest/observer.
// The atomic level is applied on top of the core's own level.
func NewWithCore(core zapcore.Core, cfg config.LoggingConfig) *Logger {
	level := zap.NewAtomicLevelAt(cfg.ZapLevel())
	return wrap(zap.New(levelFilter{Core: core, enab: level}), level, cfg)
}

type levelFilter struct {
	zapcore.Core
	enab zapcore.LevelEnabler
}

func (f levelFilter) Enabled(lvl zapcore.Level) bool {
	return f.enab.Enabled(lvl) && f.Core.Enabled(lvl)
}

func (f levelFilter) With(fields []zapcore.Field) zapcore.Core {
	return levelFilter{Core: f.Core.With(fields), enab: f.enab}
}

func (f levelFilter) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !f.enab.Enabled(ent.Level) {
		return ce
	}
	return f.Core.Check(ent, ce)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return wrap(zap.NewNop(), zap.NewAtomicLevel(), config.LoggingConfig{})
}

func wrap(root *zap.Logger, level zap.AtomicLevel, cfg config.LoggingConfig) *Logger {
	return &Logger{
		root:   root,
		level:  level,
		cfg:    cfg,
		byName: make(map[Category]*zap.Logger),
	}
}

// Root returns the uncategorized logger.
func (l *Logger) Root() *zap.Logger {
	return l.root
}

// Get returns the named logger for a category. Disabled categories get a
// no-op logger.
func (l *Logger) Get(category Category) *zap.Logger {
	l.mu.RLock()
	if lg, ok := l.byName[category]; ok {
		l.mu.RUnlock()
		return lg
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if lg, ok := l.byName[category]; ok {
		return lg
	}

	var lg *zap.Logger
	if l.cfg.IsCategoryEnabled(string(category)) {
		lg = l.root.Named(string(category))
	} else {
		lg = zap.NewNop()
	}
	l.byName[category] = lg
	return lg
}

// SetLevel changes the level of every logger derived from this one.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Level returns the current level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.level.Enabled(level)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.root.Sync()
}
