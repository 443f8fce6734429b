package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"browsernerd/internal/artifacts"
	"browsernerd/internal/browser"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Observer receives session events for metrics.
type Observer interface {
	SessionTransition(transition, outcome string)
	SessionActive(active bool)
	EvidenceCaptured(outcome string)
}

type nopObserver struct{}

func (nopObserver) SessionTransition(string, string) {}
func (nopObserver) SessionActive(bool)               {}
func (nopObserver) EvidenceCaptured(string)          {}

// Options wires a Lifecycle.
type Options struct {
	Launcher  browser.Launcher
	Allocator *artifacts.Allocator
	Layout    artifacts.Layout

	ViewportWidth  int
	ViewportHeight int

	LaunchTimeout    time.Duration
	TraceStopTimeout time.Duration

	// Index and Observer are optional.
	Index    artifacts.Recorder
	Observer Observer
	Logger   *zap.Logger
}

// Lifecycle launches and tears down the session. Transitions are serialized
// by a mutex; actions never take it.
type Lifecycle struct {
	opts     Options
	log      *zap.Logger
	observer Observer

	mu       sync.Mutex
	shutdown singleflight.Group
}

// NewLifecycle creates a lifecycle.
func NewLifecycle(opts Options) *Lifecycle {
	if opts.Allocator == nil {
		opts.Allocator = artifacts.NewAllocator()
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = 60 * time.Second
	}
	if opts.TraceStopTimeout <= 0 {
		opts.TraceStopTimeout = 15 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var obs Observer = nopObserver{}
	if opts.Observer != nil {
		obs = opts.Observer
	}
	return &Lifecycle{opts: opts, log: log, observer: obs}
}

// LaunchOptions is what a caller may choose at launch.
type LaunchOptions struct {
	Kind     browser.Kind
	Headless bool
	Args     []string
	// RecordVideo defaults to true when nil.
	RecordVideo *bool
}

// LaunchResult describes a freshly launched session.
type LaunchResult struct {
	SessionID   string
	Kind        browser.Kind
	Headless    bool
	Args        []string
	RecordVideo bool
	TracePath   string
	VideoPath   string
}

// Message renders the result for the caller.
func (r LaunchResult) Message() string {
	var b strings.Builder
	mode := "headed"
	if r.Headless {
		mode = "headless"
	}
	fmt.Fprintf(&b, "Browser launched (%s, %s)", r.Kind, mode)
	if len(r.Args) > 0 {
		fmt.Fprintf(&b, " with args: %s", strings.Join(r.Args, " "))
	}
	fmt.Fprintf(&b, "\nSession: %s", r.SessionID)
	fmt.Fprintf(&b, "\nTrace will be saved to: %s", r.TracePath)
	if r.RecordVideo {
		fmt.Fprintf(&b, "\nVideo will be saved to: %s", r.VideoPath)
	} else {
		b.WriteString("\nVideo recording disabled")
	}
	return b.String()
}

// Launch opens a browser, a recording context, a trace and a page, in that
// order. On failure every handle created so far is released and s stays
// Idle.
func (l *Lifecycle) Launch(ctx context.Context, s *Session, opts LaunchOptions) (LaunchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.active() {
		l.observer.SessionTransition("launch", "already_active")
		return LaunchResult{}, ErrAlreadyActive
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.LaunchTimeout)
	defer cancel()

	kind := opts.Kind
	if kind == "" {
		kind = browser.KindChromium
	}
	recordVideo := opts.RecordVideo == nil || *opts.RecordVideo

	id := uuid.NewString()
	tracePath := l.opts.Allocator.Path(l.opts.Layout.Traces, "", artifacts.ExtTrace, "trace")
	videoPath := ""
	if recordVideo {
		videoPath = l.opts.Allocator.Path(l.opts.Layout.Videos, "", artifacts.ExtVideo, "video")
	}

	log := l.log.With(zap.String("session", id), zap.String("kind", string(kind)))
	log.Debug("launching browser", zap.Bool("headless", opts.Headless), zap.Strings("args", opts.Args))

	engine, err := l.opts.Launcher.Launch(ctx, browser.LaunchOptions{
		Kind:     kind,
		Headless: opts.Headless,
		Args:     opts.Args,
	})
	if err != nil {
		return LaunchResult{}, l.launchFailed(log, nil, "launch "+string(kind), err)
	}

	rec, err := engine.NewRecordingContext(ctx, browser.RecordingOptions{
		VideoPath:      videoPath,
		ViewportWidth:  l.opts.ViewportWidth,
		ViewportHeight: l.opts.ViewportHeight,
	})
	if err != nil {
		return LaunchResult{}, l.launchFailed(log, engine, "create recording context", err)
	}

	if err := rec.StartTracing(browser.TraceOptions{
		Title:       id,
		Screenshots: true,
		Snapshots:   true,
		Sources:     true,
	}); err != nil {
		return LaunchResult{}, l.launchFailed(log, engine, "start tracing", err)
	}

	page, err := rec.NewPage(ctx)
	if err != nil {
		return LaunchResult{}, l.launchFailed(log, engine, "open page", err)
	}

	s.activate(handles{
		engine:    engine,
		recording: rec,
		page:      page,
		tracePath: tracePath,
		videoPath: videoPath,
		id:        id,
	}, kind, opts.Headless, time.Now())

	l.observer.SessionTransition("launch", "ok")
	l.observer.SessionActive(true)
	log.Info("browser session started", zap.String("trace", tracePath), zap.String("video", videoPath))

	return LaunchResult{
		SessionID:   id,
		Kind:        kind,
		Headless:    opts.Headless,
		Args:        opts.Args,
		RecordVideo: recordVideo,
		TracePath:   tracePath,
		VideoPath:   videoPath,
	}, nil
}

func (l *Lifecycle) launchFailed(log *zap.Logger, engine browser.Engine, step string, err error) error {
	if engine != nil {
		if cerr := engine.Close(); cerr != nil {
			log.Warn("failed to release browser after launch failure", zap.Error(cerr))
		}
	}
	l.observer.SessionTransition("launch", "failed")
	log.Warn("browser launch failed", zap.String("step", step), zap.Error(err))
	return &LaunchError{Detail: fmt.Sprintf("%s: %v", step, err), Err: err}
}

// CloseReport aggregates the outcome of every teardown step.
type CloseReport struct {
	WasActive     bool
	BrowserClosed bool
	TracePath     string
	TraceSaved    bool
	VideoPath     string
	Warnings      []string
}

// Message renders the report for the caller.
func (r CloseReport) Message() string {
	if !r.WasActive {
		return "No browser session to close"
	}
	var b strings.Builder
	if r.BrowserClosed {
		b.WriteString("Browser session closed")
	} else {
		b.WriteString("Browser session reset")
	}
	if r.TraceSaved {
		fmt.Fprintf(&b, "\nTrace saved to: %s", r.TracePath)
	}
	if r.VideoPath != "" {
		fmt.Fprintf(&b, "\nVideo saved to: %s", r.VideoPath)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\nWarning: %s", w)
	}
	return b.String()
}

func (r *CloseReport) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Close tears the session down. Idle sessions close trivially.
func (l *Lifecycle) Close(ctx context.Context, s *Session) CloseReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.teardown(ctx, s, "close")
}

// Shutdown runs the close path for process termination. Concurrent calls
// share one teardown; it never panics.
func (l *Lifecycle) Shutdown(ctx context.Context, s *Session, reason string) (report CloseReport) {
	v, _, _ := l.shutdown.Do("shutdown", func() (out interface{}, _ error) {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("panic during shutdown", zap.Any("panic", r))
				s.reset()
				out = CloseReport{WasActive: true, Warnings: []string{fmt.Sprintf("shutdown panicked: %v", r)}}
			}
		}()
		l.mu.Lock()
		defer l.mu.Unlock()
		l.log.Info("shutting down browser session", zap.String("reason", reason))
		return l.teardown(ctx, s, "shutdown"), nil
	})
	report, _ = v.(CloseReport)
	return report
}

func (l *Lifecycle) teardown(ctx context.Context, s *Session, transition string) CloseReport {
	h := s.handles()
	if h.engine == nil && h.recording == nil && h.page == nil {
		s.reset()
		l.observer.SessionTransition(transition, "idle")
		return CloseReport{}
	}

	report := CloseReport{WasActive: true}
	log := l.log.With(zap.String("session", h.id))
	ctx = context.WithoutCancel(ctx)

	l.step(&report, "trace", func() {
		switch {
		case h.tracePath == "":
		case h.recording == nil:
			report.warn("trace path %s was set but the recording context is gone; trace not saved", h.tracePath)
		case h.engine == nil || !h.engine.IsConnected():
			report.warn("browser disconnected; trace cannot be finalized")
		default:
			tctx, cancel := context.WithTimeout(ctx, l.opts.TraceStopTimeout)
			defer cancel()
			if err := h.recording.StopTracing(tctx, h.tracePath); err != nil {
				report.warn("failed to save trace: %v", err)
				return
			}
			report.TracePath = h.tracePath
			report.TraceSaved = true
			l.index(ctx, log, h.id, artifacts.KindTrace, h.tracePath, transition)
		}
	})

	l.step(&report, "browser", func() {
		switch {
		case h.engine == nil:
		case !h.engine.IsConnected():
			report.warn("browser disconnected; skipped closing it, video may be incomplete")
		default:
			if err := h.engine.Close(); err != nil {
				report.warn("failed to close browser: %v", err)
				return
			}
			report.BrowserClosed = true
			if h.videoPath != "" {
				report.VideoPath = h.videoPath
				l.index(ctx, log, h.id, artifacts.KindVideo, h.videoPath, transition)
			}
		}
	})

	s.reset()

	outcome := "ok"
	if len(report.Warnings) > 0 {
		outcome = "degraded"
	}
	l.observer.SessionTransition(transition, outcome)
	l.observer.SessionActive(false)
	log.Info("browser session closed",
		zap.String("transition", transition),
		zap.Bool("browser_closed", report.BrowserClosed),
		zap.String("trace", report.TracePath),
		zap.String("video", report.VideoPath),
		zap.Strings("warnings", report.Warnings))
	return report
}

// step runs one teardown step, converting a panic into a warning.
func (l *Lifecycle) step(report *CloseReport, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("teardown step panicked", zap.String("step", name), zap.Any("panic", r))
			report.warn("%s step failed: %v", name, r)
		}
	}()
	fn()
}

func (l *Lifecycle) index(ctx context.Context, log *zap.Logger, sessionID string, kind artifacts.Kind, path, command string) {
	if l.opts.Index == nil {
		return
	}
	if err := l.opts.Index.Record(ctx, artifacts.Record{
		SessionID: sessionID,
		Kind:      kind,
		Path:      path,
		Command:   command,
	}); err != nil {
		log.Warn("failed to index artifact", zap.String("path", path), zap.Error(err))
	}
}
