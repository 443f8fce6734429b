package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
)

const (
	// frameSampleInterval spaces screencast frames kept in a trace.
	frameSampleInterval = 500 * time.Millisecond
	maxTraceFrames      = 600
	maxTraceSnapshots   = 200
)

// TraceEvent is one line of trace.jsonl.
type TraceEvent struct {
	Type     string            `json:"type"`
	Time     int64             `json:"time"`
	Name     string            `json:"name,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	Duration int64             `json:"duration_ms,omitempty"`
	Error    string            `json:"error,omitempty"`
	URL      string            `json:"url,omitempty"`
	Method   string            `json:"method,omitempty"`
	Status   int               `json:"status,omitempty"`
	Level    string            `json:"level,omitempty"`
	Text     string            `json:"text,omitempty"`
	Resource string            `json:"resource,omitempty"`
}

type traceResource struct {
	name  string
	data  []byte
	image bool
}

// Tracer accumulates the event log, sampled frames, DOM snapshots and the
// replayable action script of one recording context.
type Tracer struct {
	opts    TraceOptions
	started time.Time
	now     func() time.Time

	mu        sync.Mutex
	events    []TraceEvent
	resources []traceResource
	sources   []string
	lastFrame time.Time
	frames    int
	snapshots int
}

// NewTracer starts a trace.
func NewTracer(opts TraceOptions) *Tracer {
	return newTracerWithClock(opts, time.Now)
}

func newTracerWithClock(opts TraceOptions, now func() time.Time) *Tracer {
	return &Tracer{opts: opts, started: now(), now: now}
}

func (t *Tracer) add(ev TraceEvent) {
	if ev.Time == 0 {
		ev.Time = t.now().UnixMilli()
	}
	t.mu.Lock()
	t.events = append(t.events, ev)
	t.mu.Unlock()
}

// Action records a completed page action.
func (t *Tracer) Action(name string, params map[string]string, started time.Time, err error) {
	ev := TraceEvent{
		Type:     "action",
		Time:     started.UnixMilli(),
		Name:     name,
		Params:   params,
		Duration: t.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	t.add(ev)

	if t.opts.Sources {
		t.mu.Lock()
		t.sources = append(t.sources, sourceLine(name, params))
		t.mu.Unlock()
	}
}

// Console records a console message.
func (t *Tracer) Console(level, text string) {
	t.add(TraceEvent{Type: "console", Level: level, Text: text})
}

// Request records an outgoing network request.
func (t *Tracer) Request(method, url string) {
	t.add(TraceEvent{Type: "request", Method: method, URL: url})
}

// Response records a network response.
func (t *Tracer) Response(url string, status int) {
	t.add(TraceEvent{Type: "response", URL: url, Status: status})
}

// Navigation records a main-frame navigation.
func (t *Tracer) Navigation(url string) {
	t.add(TraceEvent{Type: "navigation", URL: url})
}

// Frame offers a screencast frame; frames are sampled.
func (t *Tracer) Frame(jpeg []byte) {
	if !t.opts.Screenshots || len(jpeg) == 0 {
		return
	}
	now := t.now()

	t.mu.Lock()
	if t.frames >= maxTraceFrames || (!t.lastFrame.IsZero() && now.Sub(t.lastFrame) < frameSampleInterval) {
		t.mu.Unlock()
		return
	}
	t.lastFrame = now
	t.frames++
	name := fmt.Sprintf("resources/frame-%05d.jpeg", t.frames)
	t.resources = append(t.resources, traceResource{name: name, data: append([]byte(nil), jpeg...), image: true})
	t.events = append(t.events, TraceEvent{Type: "screencast-frame", Time: now.UnixMilli(), Resource: name})
	t.mu.Unlock()
}

// Snapshot stores a DOM snapshot taken after the named action.
func (t *Tracer) Snapshot(action, html string) {
	if !t.opts.Snapshots {
		return
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshots >= maxTraceSnapshots {
		return
	}
	t.snapshots++
	name := fmt.Sprintf("resources/snapshot-%05d.html", t.snapshots)
	t.resources = append(t.resources, traceResource{name: name, data: []byte(html)})
	t.events = append(t.events, TraceEvent{Type: "snapshot", Time: now.UnixMilli(), Name: action, Resource: name})
}

// WantsSnapshots reports whether DOM snapshots should be taken.
func (t *Tracer) WantsSnapshots() bool { return t.opts.Snapshots }

// WantsFrames reports whether screencast frames are sampled.
func (t *Tracer) WantsFrames() bool { return t.opts.Screenshots }

// Write stores the trace as a zip archive at path. Images are stored, text
// entries are deflated.
func (t *Tracer) Write(ctx context.Context, path string) (err error) {
	t.mu.Lock()
	events := append([]TraceEvent(nil), t.events...)
	resources := append([]traceResource(nil), t.resources...)
	sources := append([]string(nil), t.sources...)
	t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	zw := zip.NewWriter(f)

	var lines strings.Builder
	header := map[string]interface{}{
		"type":        "context-options",
		"title":       t.opts.Title,
		"started":     t.started.UnixMilli(),
		"screenshots": t.opts.Screenshots,
		"snapshots":   t.opts.Snapshots,
		"sources":     t.opts.Sources,
	}
	if err := writeJSONLine(&lines, header); err != nil {
		return err
	}
	for _, ev := range events {
		if err := writeJSONLine(&lines, ev); err != nil {
			return err
		}
	}
	if err := writeEntry(zw, "trace.jsonl", []byte(lines.String()), zip.Deflate); err != nil {
		return err
	}

	for _, res := range resources {
		if err := ctx.Err(); err != nil {
			return err
		}
		method := zip.Deflate
		if res.image {
			method = zip.Store
		}
		if err := writeEntry(zw, res.name, res.data, method); err != nil {
			return err
		}
	}

	if t.opts.Sources {
		script := strings.Join(sources, "\n")
		if script != "" {
			script += "\n"
		}
		if err := writeEntry(zw, "sources/actions.txt", []byte(script), zip.Deflate); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize trace archive: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, method uint16) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to add %s to trace: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to trace: %w", name, err)
	}
	return nil
}

func writeJSONLine(b *strings.Builder, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode trace event: %w", err)
	}
	b.Write(raw)
	b.WriteByte('\n')
	return nil
}

// sourceLine renders an action as one line of the replay script, e.g.
// fill "#email" "a@b.c".
func sourceLine(name string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, key := range []string{"url", "selector", "key", "value", "values", "state", "path"} {
		if v, ok := params[key]; ok {
			b.WriteByte(' ')
			b.WriteString(strconv.Quote(v))
		}
	}
	return b.String()
}
