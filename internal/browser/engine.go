// Package browser defines the automation engine contract the session layer
// drives and implements it on top of go-rod.
package browser

import (
	"context"
	"errors"
)

// Kind names a browser family.
type Kind string

const (
	KindChromium Kind = "chromium"
	KindChrome   Kind = "chrome"
	KindFirefox  Kind = "firefox"
	KindWebKit   Kind = "webkit"
)

// ErrDisconnected is returned by engine operations after the browser process
// went away.
var ErrDisconnected = errors.New("browser is disconnected")

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Kind     Kind
	Headless bool
	Args     []string
}

// RecordingOptions configures an isolated recording context.
type RecordingOptions struct {
	// VideoPath enables screen recording into the given file when non-empty.
	VideoPath      string
	ViewportWidth  int
	ViewportHeight int
}

// TraceOptions selects what a trace captures.
type TraceOptions struct {
	Title       string
	Screenshots bool
	Snapshots   bool
	Sources     bool
}

// ElementState is a point-in-time view of the first element matching a
// selector. Attached is false and every other field is zero when nothing
// matches.
type ElementState struct {
	Attached  bool    `json:"attached"`
	Visible   bool    `json:"visible"`
	Enabled   bool    `json:"enabled"`
	Editable  bool    `json:"editable"`
	Checked   bool    `json:"checked"`
	Text      string  `json:"text"`
	Value     string  `json:"value"`
	Attribute *string `json:"attribute"`
	Count     int     `json:"count"`
}

// Launcher starts browser engines.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Engine, error)
}

// Engine is a running browser process.
type Engine interface {
	// IsConnected probes the browser. It never blocks for long.
	IsConnected() bool
	NewRecordingContext(ctx context.Context, opts RecordingOptions) (RecordingContext, error)
	// Close terminates the browser and finalizes any video recording.
	Close() error
}

// RecordingContext is an isolated browsing context that owns tracing and
// video recording.
type RecordingContext interface {
	StartTracing(opts TraceOptions) error
	// StopTracing writes the trace archive to path.
	StopTracing(ctx context.Context, path string) error
	NewPage(ctx context.Context) (Page, error)
}

// Page is a single tab. Every method is bounded by ctx.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Hover(ctx context.Context, selector string) error
	// Press sends a key or chord such as "Enter" or "Control+A". An empty
	// selector targets the focused element.
	Press(ctx context.Context, selector, key string) error
	// SelectOption selects options by value or label and returns the values
	// that ended up selected.
	SelectOption(ctx context.Context, selector string, values []string) ([]string, error)
	Text(ctx context.Context, selector string) (string, error)
	// Inspect reads element state without waiting. attr, when non-empty, is
	// read into ElementState.Attribute.
	Inspect(ctx context.Context, selector, attr string) (ElementState, error)
	WaitForNavigation(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Screenshot writes a PNG to path.
	Screenshot(ctx context.Context, path string, fullPage bool) error
}
