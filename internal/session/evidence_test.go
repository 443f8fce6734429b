package session

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"browsernerd/internal/artifacts"
	"browsernerd/internal/browser/browsertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newEvidence(t *testing.T, f *fixture, timeout time.Duration) *Evidence {
	t.Helper()
	return NewEvidence(EvidenceOptions{
		Dir:      f.layout.Screenshots,
		Timeout:  timeout,
		Index:    f.index,
		Observer: f.observer,
		Logger:   zaptest.NewLogger(t),
	})
}

func TestEnsureActive(t *testing.T) {
	f := newFixture(t, nil)

	_, err := EnsureActive(f.session)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	f.launch(t)
	page, err := EnsureActive(f.session)
	require.NoError(t, err)
	assert.NotNil(t, page)

	f.launcher.Last().Disconnect()
	_, err = EnsureActive(f.session)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	f.life.Close(context.Background(), f.session)
	_, err = EnsureActive(f.session)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestCaptureWithoutPageIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	ev := newEvidence(t, f, 0)

	var path string
	require.NotPanics(t, func() {
		path = ev.Capture(context.Background(), f.session, "click", "#missing")
	})
	assert.Empty(t, path)
	assert.Equal(t, []string{"skipped"}, f.observer.evidence)
}

func TestCaptureDisconnectedIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	f.launch(t)
	f.launcher.Last().Disconnect()

	path := newEvidence(t, f, 0).Capture(context.Background(), f.session, "click", "#missing")
	assert.Empty(t, path)

	f.life.Close(context.Background(), f.session)
}

var evidenceName = regexp.MustCompile(`^click-failure-_missing-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.png$`)

func TestCaptureSavesScreenshot(t *testing.T) {
	f := newFixture(t, nil)
	f.launch(t)
	ev := newEvidence(t, f, 0)

	path := ev.Capture(context.Background(), f.session, "click", "#missing")
	require.NotEmpty(t, path)
	assert.FileExists(t, path)
	assert.Equal(t, f.layout.Screenshots, filepath.Dir(path))
	assert.Regexp(t, evidenceName, filepath.Base(path))
	assert.Contains(t, f.index.kinds(), artifacts.KindScreenshot)
	assert.Equal(t, []string{"saved"}, f.observer.evidence)

	f.life.Close(context.Background(), f.session)
}

func TestCaptureCapsDetail(t *testing.T) {
	f := newFixture(t, nil)
	f.launch(t)

	path := newEvidence(t, f, 0).Capture(context.Background(), f.session, "fill", strings.Repeat("a", 120))
	require.NotEmpty(t, path)
	assert.Contains(t, filepath.Base(path), "fill-failure-"+strings.Repeat("a", 50)+"-")
	assert.NotContains(t, filepath.Base(path), strings.Repeat("a", 51))

	f.life.Close(context.Background(), f.session)
}

func TestCaptureRunsAfterActionContextExpired(t *testing.T) {
	f := newFixture(t, nil)
	f.launch(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	path := newEvidence(t, f, 0).Capture(ctx, f.session, "navigate", "https://example.com")
	assert.NotEmpty(t, path)

	f.life.Close(context.Background(), f.session)
}

func TestCaptureFailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name string
		page browsertest.PageConfig
	}{
		{"error", browsertest.PageConfig{Errors: map[string]error{"screenshot": errors.New("target crashed")}}},
		{"timeout", browsertest.PageConfig{Hang: map[string]bool{"screenshot": true}}},
		{"panic", browsertest.PageConfig{Panic: map[string]bool{"screenshot": true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &browsertest.Launcher{Engine: browsertest.EngineConfig{Page: tt.page}})
			f.launch(t)

			start := time.Now()
			path := newEvidence(t, f, 50*time.Millisecond).Capture(context.Background(), f.session, "click", "#a")
			assert.Empty(t, path)
			assert.Less(t, time.Since(start), 2*time.Second)
			assert.Equal(t, []string{"failed"}, f.observer.evidence)

			f.life.Close(context.Background(), f.session)
		})
	}
}
