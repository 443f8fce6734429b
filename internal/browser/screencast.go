package browser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// videoRecorder appends screencast JPEG frames to a Motion-JPEG file. The
// file is complete only after finalize.
type videoRecorder struct {
	path string

	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	frames    int
	finalized bool
}

func newVideoRecorder(path string) (*videoRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create video directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create video file: %w", err)
	}
	return &videoRecorder{path: path, f: f, w: bufio.NewWriterSize(f, 256*1024)}, nil
}

// writeFrame appends one JPEG frame. Frames arriving after finalize are
// dropped.
func (r *videoRecorder) writeFrame(jpeg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized || len(jpeg) == 0 {
		return nil
	}
	if _, err := r.w.Write(jpeg); err != nil {
		return err
	}
	r.frames++
	return nil
}

// finalize flushes and closes the file. Safe to call more than once.
func (r *videoRecorder) finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return nil
	}
	r.finalized = true

	err := r.w.Flush()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (r *videoRecorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
