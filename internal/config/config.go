package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory when
// --config is not given.
const DefaultPath = "browsernerd.yaml"

// Config holds all browsernerd configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Browser   BrowserConfig   `yaml:"browser"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// BrowserConfig holds launch defaults. Every field can be overridden per
// launch command.
type BrowserConfig struct {
	Kind           string   `yaml:"kind"` // chromium, chrome
	Headless       bool     `yaml:"headless"`
	Args           []string `yaml:"args"`
	ViewportWidth  int      `yaml:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height"`
	RecordVideo    bool     `yaml:"record_video"`
}

// ArtifactsConfig controls where screenshots, traces and videos land.
type ArtifactsConfig struct {
	Root           string `yaml:"root"`
	ScreenshotsDir string `yaml:"screenshots_dir"`
	TracesDir      string `yaml:"traces_dir"`
	VideosDir      string `yaml:"videos_dir"`
	// IndexPath is the sqlite artifact ledger. Empty disables the index.
	IndexPath string `yaml:"index_path"`
}

// TimeoutsConfig holds per-operation timeouts as duration strings.
type TimeoutsConfig struct {
	Launch      string `yaml:"launch"`
	Navigation  string `yaml:"navigation"`
	Interaction string `yaml:"interaction"`
	Assertion   string `yaml:"assertion"`
	Wait        string `yaml:"wait"`
	Evidence    string `yaml:"evidence"`
	TraceStop   string `yaml:"trace_stop"`
	MaxWait     string `yaml:"max_wait"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "browsernerd",
		Version: "0.3.0",

		Browser: BrowserConfig{
			Kind:           "chromium",
			Headless:       false,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			RecordVideo:    true,
		},

		Artifacts: ArtifactsConfig{
			Root:           ".",
			ScreenshotsDir: "screenshots",
			TracesDir:      "traces",
			VideosDir:      "videos",
			IndexPath:      ".browsernerd/artifacts.db",
		},

		Timeouts: TimeoutsConfig{
			Launch:      "60s",
			Navigation:  "30s",
			Interaction: "5s",
			Assertion:   "30s",
			Wait:        "30s",
			Evidence:    "2s",
			TraceStop:   "15s",
			MaxWait:     "5m",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("BROWSERNERD_ARTIFACTS_DIR"); dir != "" {
		c.Artifacts.Root = dir
	}
	if v := os.Getenv("BROWSERNERD_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = headless
		}
	}
	if level := os.Getenv("BROWSERNERD_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if addr := os.Getenv("BROWSERNERD_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
	if path := os.Getenv("BROWSERNERD_INDEX"); path != "" {
		c.Artifacts.IndexPath = path
	}
}

// ValidKinds lists the browser kinds the engine can launch.
var ValidKinds = []string{"chromium", "chrome"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	valid := false
	for _, k := range ValidKinds {
		if c.Browser.Kind == k {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid browser kind: %s (valid: %v)", c.Browser.Kind, ValidKinds)
	}
	if c.Artifacts.ScreenshotsDir == "" || c.Artifacts.TracesDir == "" || c.Artifacts.VideosDir == "" {
		return fmt.Errorf("artifact directories must not be empty")
	}
	if c.GetEvidenceTimeout() >= c.GetInteractionTimeout() {
		return fmt.Errorf("evidence timeout (%s) must be shorter than interaction timeout (%s)",
			c.GetEvidenceTimeout(), c.GetInteractionTimeout())
	}
	if _, ok := parseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// ScreenshotsPath returns the absolute-or-relative screenshots directory.
func (c *Config) ScreenshotsPath() string {
	return filepath.Join(c.Artifacts.Root, c.Artifacts.ScreenshotsDir)
}

// TracesPath returns the traces directory.
func (c *Config) TracesPath() string {
	return filepath.Join(c.Artifacts.Root, c.Artifacts.TracesDir)
}

// VideosPath returns the videos directory.
func (c *Config) VideosPath() string {
	return filepath.Join(c.Artifacts.Root, c.Artifacts.VideosDir)
}

// IndexFile returns the artifact index location, resolved against the
// artifacts root when relative. Empty means the index is disabled.
func (c *Config) IndexFile() string {
	p := c.Artifacts.IndexPath
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Artifacts.Root, p)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetLaunchTimeout returns the launch timeout as a duration.
func (c *Config) GetLaunchTimeout() time.Duration {
	return parseDuration(c.Timeouts.Launch, 60*time.Second)
}

// GetNavigationTimeout returns the navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Timeouts.Navigation, 30*time.Second)
}

// GetInteractionTimeout returns the click/fill/hover timeout as a duration.
func (c *Config) GetInteractionTimeout() time.Duration {
	return parseDuration(c.Timeouts.Interaction, 5*time.Second)
}

// GetAssertionTimeout returns the default assertion timeout as a duration.
func (c *Config) GetAssertionTimeout() time.Duration {
	return parseDuration(c.Timeouts.Assertion, 30*time.Second)
}

// GetWaitTimeout returns the default wait timeout as a duration.
func (c *Config) GetWaitTimeout() time.Duration {
	return parseDuration(c.Timeouts.Wait, 30*time.Second)
}

// GetEvidenceTimeout returns the failure screenshot timeout as a duration.
func (c *Config) GetEvidenceTimeout() time.Duration {
	return parseDuration(c.Timeouts.Evidence, 2*time.Second)
}

// GetTraceStopTimeout returns the trace finalization timeout as a duration.
func (c *Config) GetTraceStopTimeout() time.Duration {
	return parseDuration(c.Timeouts.TraceStop, 15*time.Second)
}

// GetMaxWait returns the hard cap applied to caller-supplied timeouts.
func (c *Config) GetMaxWait() time.Duration {
	return parseDuration(c.Timeouts.MaxWait, 5*time.Minute)
}
