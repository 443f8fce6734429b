package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"browsernerd/internal/artifacts"
	"browsernerd/internal/browser"
	"browsernerd/internal/browser/browsertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- recordingObserver ---

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	active      []bool
	evidence    []string
}

func (o *recordingObserver) SessionTransition(transition, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition+":"+outcome)
}

func (o *recordingObserver) SessionActive(active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = append(o.active, active)
}

func (o *recordingObserver) EvidenceCaptured(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evidence = append(o.evidence, outcome)
}

// --- memoryIndex ---

type memoryIndex struct {
	mu      sync.Mutex
	records []artifacts.Record
}

func (m *memoryIndex) Record(_ context.Context, rec artifacts.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryIndex) kinds() []artifacts.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]artifacts.Kind, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Kind)
	}
	return out
}

type fixture struct {
	launcher *browsertest.Launcher
	layout   artifacts.Layout
	life     *Lifecycle
	session  *Session
	observer *recordingObserver
	index    *memoryIndex
}

func newFixture(t *testing.T, ln *browsertest.Launcher) *fixture {
	t.Helper()
	if ln == nil {
		ln = &browsertest.Launcher{}
	}
	root := t.TempDir()
	layout := artifacts.Layout{
		Screenshots: filepath.Join(root, "screenshots"),
		Traces:      filepath.Join(root, "traces"),
		Videos:      filepath.Join(root, "videos"),
	}
	require.NoError(t, artifacts.EnsureLayout(layout))

	obs := &recordingObserver{}
	idx := &memoryIndex{}
	life := NewLifecycle(Options{
		Launcher:       ln,
		Layout:         layout,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		Index:          idx,
		Observer:       obs,
		Logger:         zaptest.NewLogger(t),
	})
	return &fixture{launcher: ln, layout: layout, life: life, session: New(), observer: obs, index: idx}
}

func (f *fixture) launch(t *testing.T) LaunchResult {
	t.Helper()
	res, err := f.life.Launch(context.Background(), f.session, LaunchOptions{Kind: browser.KindChromium, Headless: true})
	require.NoError(t, err)
	return res
}

func TestCloseWhileIdleIsTrivial(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < 3; i++ {
		report := f.life.Close(context.Background(), f.session)
		assert.False(t, report.WasActive)
		assert.Empty(t, report.Warnings)
		assert.Equal(t, "No browser session to close", report.Message())
		assert.True(t, f.session.Info().Idle())
	}
	assert.Empty(t, f.launcher.Launches)
}

func TestLaunchThenClose(t *testing.T) {
	f := newFixture(t, nil)
	res := f.launch(t)

	info := f.session.Info()
	assert.True(t, info.HasEngine)
	assert.True(t, info.HasRecording)
	assert.True(t, info.HasPage)
	assert.Equal(t, res.SessionID, info.ID)
	assert.True(t, f.layout.Contains(artifacts.KindTrace, res.TracePath), res.TracePath)
	assert.True(t, f.layout.Contains(artifacts.KindVideo, res.VideoPath), res.VideoPath)
	assert.Equal(t, ".zip", filepath.Ext(res.TracePath))
	assert.Equal(t, ".mjpeg", filepath.Ext(res.VideoPath))
	assert.True(t, res.RecordVideo)
	assert.Contains(t, res.Message(), res.TracePath)
	assert.Contains(t, res.Message(), res.VideoPath)

	eng := f.launcher.Last()
	require.NotNil(t, eng)
	assert.Equal(t, browser.LaunchOptions{Kind: browser.KindChromium, Headless: true}, eng.Options)
	rec := eng.Recording()
	require.NotNil(t, rec)
	assert.Equal(t, res.VideoPath, rec.Options.VideoPath)
	assert.Equal(t, 1280, rec.Options.ViewportWidth)
	require.NotNil(t, rec.Trace)
	assert.True(t, rec.Trace.Screenshots)
	assert.True(t, rec.Trace.Snapshots)
	assert.True(t, rec.Trace.Sources)

	report := f.life.Close(context.Background(), f.session)
	assert.True(t, report.WasActive)
	assert.True(t, report.BrowserClosed)
	assert.True(t, report.TraceSaved)
	assert.Equal(t, res.TracePath, report.TracePath)
	assert.Equal(t, res.VideoPath, report.VideoPath)
	assert.Empty(t, report.Warnings)
	assert.FileExists(t, res.TracePath)
	assert.FileExists(t, res.VideoPath)

	msg := report.Message()
	assert.Contains(t, msg, "Trace saved to: "+res.TracePath)
	assert.Contains(t, msg, "Video saved to: "+res.VideoPath)

	assert.True(t, f.session.Info().Idle())
	assert.Equal(t, 1, eng.Closed())
	assert.Equal(t, []artifacts.Kind{artifacts.KindTrace, artifacts.KindVideo}, f.index.kinds())
	assert.Equal(t, []string{"launch:ok", "close:ok"}, f.observer.transitions)
	assert.Equal(t, []bool{true, false}, f.observer.active)

	again := f.life.Close(context.Background(), f.session)
	assert.Equal(t, "No browser session to close", again.Message())
}

func TestLaunchWhileActiveKeepsHandles(t *testing.T) {
	f := newFixture(t, nil)
	f.launch(t)
	before := f.session.handles()

	_, err := f.life.Launch(context.Background(), f.session, LaunchOptions{Kind: browser.KindChrome})
	require.ErrorIs(t, err, ErrAlreadyActive)

	after := f.session.handles()
	assert.Same(t, before.engine.(*browsertest.Engine), after.engine.(*browsertest.Engine))
	assert.Same(t, before.page.(*browsertest.Page), after.page.(*browsertest.Page))
	assert.Equal(t, before.tracePath, after.tracePath)
	assert.Len(t, f.launcher.Launches, 1)

	f.life.Close(context.Background(), f.session)
}

func TestLaunchWithoutVideo(t *testing.T) {
	f := newFixture(t, nil)
	off := false
	res, err := f.life.Launch(context.Background(), f.session, LaunchOptions{RecordVideo: &off})
	require.NoError(t, err)

	assert.False(t, res.RecordVideo)
	assert.Empty(t, res.VideoPath)
	assert.Equal(t, browser.KindChromium, res.Kind, "kind defaults to chromium")
	assert.Empty(t, f.launcher.Last().Recording().Options.VideoPath)
	assert.Contains(t, res.Message(), "Video recording disabled")
	assert.NotEmpty(t, res.TracePath, "trace is always on")

	report := f.life.Close(context.Background(), f.session)
	assert.Empty(t, report.VideoPath)
	assert.True(t, report.TraceSaved)
}

func TestLaunchFailureReleasesHandles(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name       string
		launcher   *browsertest.Launcher
		wantClosed bool
		wantDetail string
	}{
		{"engine launch", &browsertest.Launcher{LaunchError: boom}, false, "launch chromium"},
		{"recording context", &browsertest.Launcher{Engine: browsertest.EngineConfig{RecordingError: boom}}, true, "create recording context"},
		{"trace start", &browsertest.Launcher{Engine: browsertest.EngineConfig{TraceStartErr: boom}}, true, "start tracing"},
		{"page", &browsertest.Launcher{Engine: browsertest.EngineConfig{PageError: boom}}, true, "open page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.launcher)
			_, err := f.life.Launch(context.Background(), f.session, LaunchOptions{})
			require.Error(t, err)

			var le *LaunchError
			require.ErrorAs(t, err, &le)
			assert.Contains(t, le.Detail, tt.wantDetail)
			assert.ErrorIs(t, err, boom)
			assert.True(t, f.session.Info().Idle())

			if tt.wantClosed {
				require.NotNil(t, f.launcher.Last())
				assert.Equal(t, 1, f.launcher.Last().Closed())
			}
			assert.Equal(t, []string{"launch:failed"}, f.observer.transitions)

			report := f.life.Close(context.Background(), f.session)
			assert.False(t, report.WasActive)
		})
	}
}

func TestLaunchTimeout(t *testing.T) {
	ln := &browsertest.Launcher{Block: make(chan struct{})}
	f := newFixture(t, ln)
	f.life.opts.LaunchTimeout = 50 * time.Millisecond

	_, err := f.life.Launch(context.Background(), f.session, LaunchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, f.session.Info().Idle())
}

func TestCloseAfterDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	f.launch(t)
	eng := f.launcher.Last()
	eng.Disconnect()

	report := f.life.Close(context.Background(), f.session)
	assert.True(t, report.WasActive)
	assert.False(t, report.BrowserClosed)
	assert.False(t, report.TraceSaved)
	assert.Empty(t, report.VideoPath)
	require.Len(t, report.Warnings, 2)
	assert.Contains(t, report.Warnings[0], "trace cannot be finalized")
	assert.Contains(t, report.Warnings[1], "skipped closing")
	assert.Equal(t, 0, eng.Closed())
	assert.True(t, f.session.Info().Idle())
	assert.Equal(t, []string{"launch:ok", "close:degraded"}, f.observer.transitions)
}

func TestCloseTraceStopFailureStillClosesBrowser(t *testing.T) {
	ln := &browsertest.Launcher{Engine: browsertest.EngineConfig{TraceStopErr: errors.New("disk full")}}
	f := newFixture(t, ln)
	res := f.launch(t)

	report := f.life.Close(context.Background(), f.session)
	assert.False(t, report.TraceSaved)
	assert.True(t, report.BrowserClosed)
	assert.Equal(t, res.VideoPath, report.VideoPath)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "disk full")
	assert.True(t, f.session.Info().Idle())
}

func TestCloseEngineCloseFailure(t *testing.T) {
	ln := &browsertest.Launcher{Engine: browsertest.EngineConfig{CloseError: errors.New("hung")}}
	f := newFixture(t, ln)
	f.launch(t)

	report := f.life.Close(context.Background(), f.session)
	assert.True(t, report.TraceSaved)
	assert.False(t, report.BrowserClosed)
	assert.Empty(t, report.VideoPath)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "hung")
	assert.Contains(t, report.Message(), "Browser session reset")
	assert.True(t, f.session.Info().Idle())
}

func TestCloseWithCancelledContextStillSavesTrace(t *testing.T) {
	f := newFixture(t, nil)
	f.launch(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := f.life.Close(ctx, f.session)
	assert.True(t, report.TraceSaved)
	assert.True(t, report.BrowserClosed)
}

func TestShutdownConcurrentRunsCleanupOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.launch(t)
	eng := f.launcher.Last()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.life.Shutdown(context.Background(), f.session, "signal")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, eng.Closed())
	assert.True(t, f.session.Info().Idle())
}

func TestShutdownIdle(t *testing.T) {
	f := newFixture(t, nil)
	report := f.life.Shutdown(context.Background(), f.session, "stdin closed")
	assert.False(t, report.WasActive)
}

// --- panicEngine ---

type panicEngine struct{ browsertest.Engine }

func (*panicEngine) IsConnected() bool { panic("probe exploded") }

func TestShutdownSurvivesPanickingEngine(t *testing.T) {
	f := newFixture(t, nil)
	f.session.activate(handles{
		engine:    &panicEngine{},
		recording: &browsertest.RecordingContext{},
		page:      browsertest.NewPage(browsertest.PageConfig{}),
		tracePath: filepath.Join(f.layout.Traces, "t.zip"),
		id:        "s",
	}, browser.KindChromium, true, time.Now())

	var report CloseReport
	require.NotPanics(t, func() {
		report = f.life.Shutdown(context.Background(), f.session, "signal")
	})
	assert.True(t, report.WasActive)
	require.Len(t, report.Warnings, 2)
	assert.Contains(t, report.Warnings[0], "trace step failed")
	assert.Contains(t, report.Warnings[1], "browser step failed")
	assert.True(t, f.session.Info().Idle())
}
