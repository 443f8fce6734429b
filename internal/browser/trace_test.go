package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func readArchive(t *testing.T, path string) map[string]*zip.File {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	entries := make(map[string]*zip.File)
	for _, f := range r.File {
		entries[f.Name] = f
	}
	return entries
}

func readEntry(t *testing.T, f *zip.File) string {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestTracerWriteArchive(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
	tr := newTracerWithClock(TraceOptions{Title: "s1", Screenshots: true, Snapshots: true, Sources: true}, clock.now)

	started := clock.now()
	clock.t = clock.t.Add(120 * time.Millisecond)
	tr.Action("navigate", map[string]string{"url": "https://example.com"}, started, nil)
	tr.Navigation("https://example.com/")
	tr.Request("GET", "https://example.com/")
	tr.Response("https://example.com/", 200)
	tr.Console("log", "hello")
	tr.Frame([]byte{0xff, 0xd8, 0xff})
	tr.Snapshot("navigate", "<html></html>")
	tr.Action("click", map[string]string{"selector": "#missing"}, clock.now(), errors.New("timeout"))

	path := filepath.Join(t.TempDir(), "traces", "trace.zip")
	require.NoError(t, tr.Write(context.Background(), path))

	entries := readArchive(t, path)
	require.Contains(t, entries, "trace.jsonl")
	require.Contains(t, entries, "resources/frame-00001.jpeg")
	require.Contains(t, entries, "resources/snapshot-00001.html")
	require.Contains(t, entries, "sources/actions.txt")

	assert.Equal(t, zip.Store, entries["resources/frame-00001.jpeg"].Method)
	assert.Equal(t, zip.Deflate, entries["trace.jsonl"].Method)

	var types []string
	sc := bufio.NewScanner(strings.NewReader(readEntry(t, entries["trace.jsonl"])))
	first := true
	for sc.Scan() {
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		if first {
			assert.Equal(t, "context-options", ev["type"])
			assert.Equal(t, "s1", ev["title"])
			first = false
			continue
		}
		types = append(types, ev["type"].(string))
		if ev["type"] == "action" && ev["name"] == "navigate" {
			assert.EqualValues(t, 120, ev["duration_ms"])
		}
		if ev["type"] == "action" && ev["name"] == "click" {
			assert.Equal(t, "timeout", ev["error"])
		}
	}
	assert.Equal(t, []string{"action", "navigation", "request", "response", "console", "screencast-frame", "snapshot", "action"}, types)

	assert.Equal(t, "navigate \"https://example.com\"\nclick \"#missing\"\n", readEntry(t, entries["sources/actions.txt"]))
	assert.Equal(t, "<html></html>", readEntry(t, entries["resources/snapshot-00001.html"]))
}

func TestTracerSamplesFrames(t *testing.T) {
	clock := &stepClock{t: time.Unix(1000, 0)}
	tr := newTracerWithClock(TraceOptions{Screenshots: true}, clock.now)

	tr.Frame([]byte{1})
	clock.t = clock.t.Add(100 * time.Millisecond)
	tr.Frame([]byte{2})
	clock.t = clock.t.Add(frameSampleInterval)
	tr.Frame([]byte{3})

	assert.Equal(t, 2, tr.frames)
}

func TestTracerHonorsOptions(t *testing.T) {
	tr := NewTracer(TraceOptions{})
	tr.Frame([]byte{1})
	tr.Snapshot("click", "<p>")
	tr.Action("click", map[string]string{"selector": "#a"}, time.Now(), nil)

	path := filepath.Join(t.TempDir(), "t.zip")
	require.NoError(t, tr.Write(context.Background(), path))

	entries := readArchive(t, path)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries, "trace.jsonl")
	assert.False(t, tr.WantsFrames())
	assert.False(t, tr.WantsSnapshots())
}

func TestTracerWriteCancelledRemovesFile(t *testing.T) {
	tr := NewTracer(TraceOptions{Snapshots: true})
	tr.Snapshot("navigate", "<html>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "t.zip")
	err := tr.Write(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestSourceLine(t *testing.T) {
	assert.Equal(t, `fill "#email" "a@b.c"`, sourceLine("fill", map[string]string{"selector": "#email", "value": "a@b.c"}))
	assert.Equal(t, `pressKey "Enter"`, sourceLine("pressKey", map[string]string{"key": "Enter"}))
	assert.Equal(t, "waitForNavigation", sourceLine("waitForNavigation", nil))
}
