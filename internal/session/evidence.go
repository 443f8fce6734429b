package session

import (
	"context"
	"fmt"
	"time"

	"browsernerd/internal/artifacts"

	"go.uber.org/zap"
)

const maxDetailLen = 50

// EvidenceOptions wires an Evidence capturer.
type EvidenceOptions struct {
	Allocator *artifacts.Allocator
	Dir       string
	Timeout   time.Duration
	Index     artifacts.Recorder
	Observer  Observer
	Logger    *zap.Logger
}

// Evidence takes failure screenshots. Capture never fails: a screenshot
// that cannot be taken is logged and reported as an empty path.
type Evidence struct {
	opts     EvidenceOptions
	log      *zap.Logger
	observer Observer
}

// NewEvidence creates an evidence capturer.
func NewEvidence(opts EvidenceOptions) *Evidence {
	if opts.Allocator == nil {
		opts.Allocator = artifacts.NewAllocator()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var obs Observer = nopObserver{}
	if opts.Observer != nil {
		obs = opts.Observer
	}
	return &Evidence{opts: opts, log: log, observer: obs}
}

// Capture screenshots the session page into the screenshots directory as
// <category>-failure-<detail>-<timestamp>.png and returns the path, or ""
// when there is no usable page or the screenshot fails.
func (e *Evidence) Capture(ctx context.Context, s *Session, category, detail string) (path string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("evidence capture panicked", zap.String("category", category), zap.Any("panic", r))
			e.observer.EvidenceCaptured("failed")
			path = ""
		}
	}()

	h := s.handles()
	if h.page == nil || h.engine == nil || !h.engine.IsConnected() {
		e.observer.EvidenceCaptured("skipped")
		return ""
	}

	base := fmt.Sprintf("%s-failure-%s", category, e.opts.Allocator.Stamp())
	if d := artifacts.SanitizeDetail(detail, maxDetailLen); d != "" {
		base = fmt.Sprintf("%s-failure-%s-%s", category, d, e.opts.Allocator.Stamp())
	}
	path = e.opts.Allocator.Path(e.opts.Dir, base, artifacts.ExtScreenshot, category+"-failure")

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.Timeout)
	defer cancel()
	if err := h.page.Screenshot(cctx, path, false); err != nil {
		e.log.Warn("failed to capture failure screenshot",
			zap.String("category", category),
			zap.String("detail", detail),
			zap.Error(err))
		e.observer.EvidenceCaptured("failed")
		return ""
	}

	e.observer.EvidenceCaptured("saved")
	e.log.Debug("failure screenshot saved", zap.String("category", category), zap.String("path", path))
	if e.opts.Index != nil {
		if err := e.opts.Index.Record(context.WithoutCancel(ctx), artifacts.Record{
			SessionID: h.id,
			Kind:      artifacts.KindScreenshot,
			Path:      path,
			Command:   category,
		}); err != nil {
			e.log.Warn("failed to index screenshot", zap.String("path", path), zap.Error(err))
		}
	}
	return path
}
