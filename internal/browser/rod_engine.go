package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"
)

const (
	probeTimeout   = time.Second
	cleanupTimeout = 3 * time.Second
	screencastJPEG = 70
)

type rodEngine struct {
	log      *zap.Logger
	kind     Kind
	launcher *launcher.Launcher
	browser  *rod.Browser

	// ctx scopes the event streams of every page.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	lost        bool
	recorders   []*videoRecorder
	releaseOnce sync.Once
}

func newRodEngine(kind Kind, ln *launcher.Launcher, b *rod.Browser, log *zap.Logger) *rodEngine {
	ctx, cancel := context.WithCancel(context.Background())
	return &rodEngine{
		log:      log,
		kind:     kind,
		launcher: ln,
		browser:  b,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// IsConnected probes the browser with a short Browser.getVersion call. A
// failed probe permanently marks the engine lost and finalizes recordings.
func (e *rodEngine) IsConnected() bool {
	e.mu.Lock()
	if e.closed || e.lost {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	if _, err := e.browser.Timeout(probeTimeout).Version(); err != nil {
		e.log.Warn("browser connectivity probe failed", zap.String("kind", string(e.kind)), zap.Error(err))
		e.markLost()
		return false
	}
	return true
}

func (e *rodEngine) markLost() {
	e.mu.Lock()
	if e.closed || e.lost {
		e.mu.Unlock()
		return
	}
	e.lost = true
	e.mu.Unlock()
	e.releaseOnce.Do(e.release)
}

func (e *rodEngine) usable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && !e.lost
}

// Close closes the browser, stops event streams and finalizes video files.
func (e *rodEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	lost := e.lost
	e.mu.Unlock()

	var err error
	if !lost {
		err = e.browser.Close()
	}
	e.releaseOnce.Do(e.release)
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func (e *rodEngine) release() {
	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	recorders := e.recorders
	e.recorders = nil
	e.mu.Unlock()

	for _, rec := range recorders {
		if err := rec.finalize(); err != nil {
			e.log.Warn("failed to finalize video", zap.String("path", rec.path), zap.Error(err))
			continue
		}
		e.log.Debug("video finalized", zap.String("path", rec.path), zap.Int("frames", rec.frameCount()))
	}

	e.launcher.Kill()
	done := make(chan struct{})
	go func() {
		e.launcher.Cleanup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cleanupTimeout):
		e.log.Warn("browser process cleanup timed out")
	}
}

func (e *rodEngine) addRecorder(rec *videoRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorders = append(e.recorders, rec)
}

// NewRecordingContext opens an incognito browser context.
func (e *rodEngine) NewRecordingContext(ctx context.Context, opts RecordingOptions) (RecordingContext, error) {
	if !e.usable() {
		return nil, ErrDisconnected
	}
	incognito, err := e.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	return &rodContext{
		engine:  e,
		browser: incognito.Context(e.ctx),
		opts:    opts,
	}, nil
}

type rodContext struct {
	engine  *rodEngine
	browser *rod.Browser
	opts    RecordingOptions

	mu           sync.Mutex
	tracer       *Tracer
	videoStarted bool
}

func (c *rodContext) StartTracing(opts TraceOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tracer != nil {
		return fmt.Errorf("tracing already started")
	}
	c.tracer = NewTracer(opts)
	return nil
}

func (c *rodContext) StopTracing(ctx context.Context, path string) error {
	c.mu.Lock()
	tr := c.tracer
	c.tracer = nil
	c.mu.Unlock()

	if tr == nil {
		return fmt.Errorf("tracing was not started")
	}
	return tr.Write(ctx, path)
}

func (c *rodContext) trace() *Tracer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracer
}

// NewPage opens a tab in the context. The first page of a context with a
// video path is screen-recorded.
func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	if !c.engine.usable() {
		return nil, ErrDisconnected
	}

	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Context(c.engine.ctx)

	if c.opts.ViewportWidth > 0 && c.opts.ViewportHeight > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             c.opts.ViewportWidth,
			Height:            c.opts.ViewportHeight,
			DeviceScaleFactor: 1.0,
			Mobile:            false,
		}).Call(page); err != nil {
			c.engine.log.Warn("failed to set viewport", zap.Error(err))
		}
	}

	c.mu.Lock()
	wantVideo := c.opts.VideoPath != "" && !c.videoStarted
	if wantVideo {
		c.videoStarted = true
	}
	tr := c.tracer
	c.mu.Unlock()

	var rec *videoRecorder
	if wantVideo {
		rec, err = newVideoRecorder(c.opts.VideoPath)
		if err != nil {
			_ = page.Close()
			return nil, err
		}
		c.engine.addRecorder(rec)
	}

	p := &rodPage{page: page, rc: c, log: c.engine.log}
	c.stream(p, rec)

	if rec != nil || (tr != nil && tr.WantsFrames()) {
		start := proto.PageStartScreencast{
			Format:        proto.PageStartScreencastFormatJpeg,
			Quality:       gson.Int(screencastJPEG),
			EveryNthFrame: gson.Int(1),
		}
		if c.opts.ViewportWidth > 0 && c.opts.ViewportHeight > 0 {
			start.MaxWidth = gson.Int(c.opts.ViewportWidth)
			start.MaxHeight = gson.Int(c.opts.ViewportHeight)
		}
		if err := start.Call(page); err != nil {
			c.engine.log.Warn("failed to start screencast", zap.Error(err))
		}
	}
	return p, nil
}

// stream wires CDP events of the page into the video recorder and the
// current tracer until the engine shuts down.
func (c *rodContext) stream(p *rodPage, rec *videoRecorder) {
	page := p.page
	wait := page.EachEvent(
		func(ev *proto.PageScreencastFrame) {
			_ = proto.PageScreencastFrameAck{SessionID: ev.SessionID}.Call(page)
			if rec != nil {
				if err := rec.writeFrame(ev.Data); err != nil {
					c.engine.log.Debug("video frame dropped", zap.Error(err))
				}
			}
			if tr := c.trace(); tr != nil {
				tr.Frame(ev.Data)
			}
		},
		func(ev *proto.RuntimeConsoleAPICalled) {
			if tr := c.trace(); tr != nil {
				tr.Console(string(ev.Type), stringifyConsoleArgs(ev.Args))
			}
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			if tr := c.trace(); tr != nil && ev.Request != nil {
				tr.Request(ev.Request.Method, ev.Request.URL)
			}
		},
		func(ev *proto.NetworkResponseReceived) {
			if tr := c.trace(); tr != nil && ev.Response != nil {
				tr.Response(ev.Response.URL, ev.Response.Status)
			}
		},
		func(ev *proto.PageFrameNavigated) {
			if tr := c.trace(); tr != nil && ev.Frame != nil && ev.Frame.ParentID == "" {
				tr.Navigation(ev.Frame.URL)
			}
		},
	)

	c.engine.wg.Add(1)
	go func() {
		defer c.engine.wg.Done()
		wait()
	}()
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
