// Package dispatch routes named commands to the session lifecycle and the
// browser actions, and turns every outcome into an Envelope.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"browsernerd/internal/actions"
	"browsernerd/internal/artifacts"
	"browsernerd/internal/browser"
	"browsernerd/internal/metrics"
	"browsernerd/internal/session"

	"go.uber.org/zap"
)

// Envelope is the result of every command. EvidencePath, when set, is also
// named in Text.
type Envelope struct {
	Text         string
	IsError      bool
	EvidencePath string
}

func success(text string) Envelope {
	return Envelope{Text: text}
}

func failure(text string) Envelope {
	return Envelope{Text: text, IsError: true}
}

// Timeouts are the defaults per timeout class plus the hard cap applied to
// caller-supplied values.
type Timeouts struct {
	Navigation  time.Duration
	Interaction time.Duration
	Assertion   time.Duration
	Wait        time.Duration
	MaxWait     time.Duration
}

// LaunchDefaults fill in launch arguments the caller omits.
type LaunchDefaults struct {
	Kind        browser.Kind
	Headless    bool
	Args        []string
	RecordVideo bool
}

// Options wires a Dispatcher.
type Options struct {
	Session   *session.Session
	Lifecycle *session.Lifecycle
	Evidence  *session.Evidence

	Allocator      *artifacts.Allocator
	ScreenshotsDir string
	// Index is optional.
	Index artifacts.Recorder

	Timeouts Timeouts
	Launch   LaunchDefaults

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Dispatcher runs one command at a time against the session.
type Dispatcher struct {
	opts     Options
	log      *zap.Logger
	commands map[string]*command

	mu sync.Mutex
}

// New creates a dispatcher with the full command table.
func New(opts Options) *Dispatcher {
	if opts.Session == nil {
		opts.Session = session.New()
	}
	if opts.Allocator == nil {
		opts.Allocator = artifacts.NewAllocator()
	}
	opts.Timeouts = opts.Timeouts.withDefaults()
	if opts.Launch.Kind == "" {
		opts.Launch.Kind = browser.KindChromium
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Evidence == nil {
		opts.Evidence = session.NewEvidence(session.EvidenceOptions{
			Allocator: opts.Allocator,
			Dir:       opts.ScreenshotsDir,
			Logger:    log,
		})
	}

	d := &Dispatcher{opts: opts, log: log}
	d.commands = d.table()
	return d
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Navigation <= 0 {
		t.Navigation = 30 * time.Second
	}
	if t.Interaction <= 0 {
		t.Interaction = 5 * time.Second
	}
	if t.Assertion <= 0 {
		t.Assertion = 30 * time.Second
	}
	if t.Wait <= 0 {
		t.Wait = 30 * time.Second
	}
	if t.MaxWait <= 0 {
		t.MaxWait = 5 * time.Minute
	}
	return t
}

// Session returns the session the dispatcher drives.
func (d *Dispatcher) Session() *session.Session {
	return d.opts.Session
}

// Commands returns the command names in sorted order.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs one command. It never panics and never returns anything but
// an Envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args Args) (env Envelope) {
	start := time.Now()
	outcome := "ok"
	log := d.log.With(zap.String("command", name))

	defer func() {
		if r := recover(); r != nil {
			log.Error("command panicked", zap.Any("panic", r), zap.Stack("stack"))
			env = failure(fmt.Sprintf("Internal error while running %s: %v", name, r))
			outcome = "panic"
		}
		elapsed := time.Since(start)
		d.opts.Metrics.CommandDone(name, outcome, elapsed)
		if env.IsError {
			log.Warn("command failed",
				zap.String("outcome", outcome),
				zap.Duration("elapsed", elapsed),
				zap.String("evidence", env.EvidencePath),
				zap.String("message", env.Text))
		} else {
			log.Info("command completed", zap.Duration("elapsed", elapsed))
		}
	}()

	cmd, ok := d.commands[name]
	if !ok {
		outcome = "unknown"
		return failure(fmt.Sprintf("Unknown command: %s", name))
	}
	if args == nil {
		args = Args{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cmd.lifecycle != nil {
		env, outcome = cmd.lifecycle(ctx, args)
		return env
	}

	page, err := session.EnsureActive(d.opts.Session)
	if err != nil {
		outcome = "no_session"
		return failure(err.Error())
	}

	timeout, err := d.timeout(cmd, args)
	if err != nil {
		outcome = "invalid"
		return failure((&actions.InvalidArgument{Op: name, Reason: err.Error()}).Error())
	}

	text, err := cmd.action(ctx, page, args, timeout)
	if err == nil {
		return success(text)
	}

	var invalid *actions.InvalidArgument
	if errors.As(err, &invalid) {
		outcome = "invalid"
		return failure(err.Error())
	}

	outcome = "error"
	env = failure(err.Error())
	if path := d.opts.Evidence.Capture(ctx, d.opts.Session, name, args.String(cmd.subject, "")); path != "" {
		env.Text += "\nScreenshot saved to: " + path
		env.EvidencePath = path
	}
	return env
}

// Shutdown tears the session down without waiting for the command queue.
func (d *Dispatcher) Shutdown(ctx context.Context, reason string) session.CloseReport {
	return d.opts.Lifecycle.Shutdown(ctx, d.opts.Session, reason)
}

func (d *Dispatcher) timeout(cmd *command, args Args) (time.Duration, error) {
	def := d.classDefault(cmd.timeout)
	t, err := args.Millis("timeout", def)
	if err != nil {
		return def, err
	}
	if t == 0 {
		t = def
	}
	if t > d.opts.Timeouts.MaxWait {
		t = d.opts.Timeouts.MaxWait
	}
	return t, nil
}

func (d *Dispatcher) classDefault(c timeoutClass) time.Duration {
	switch c {
	case navigationTimeout:
		return d.opts.Timeouts.Navigation
	case assertionTimeout:
		return d.opts.Timeouts.Assertion
	case waitTimeout:
		return d.opts.Timeouts.Wait
	}
	return d.opts.Timeouts.Interaction
}
