// Package session owns the single browser session: its lifecycle, the
// guard every action passes through and failure evidence capture.
package session

import (
	"sync"
	"time"

	"browsernerd/internal/browser"
)

// Session holds the handles of the one live browser session. Handles are
// either all set (Active) or all nil (Idle); a page implies a recording
// context, which implies an engine. Only the lifecycle mutates a Session.
type Session struct {
	mu sync.RWMutex

	engine    browser.Engine
	recording browser.RecordingContext
	page      browser.Page
	tracePath string
	videoPath string

	id         string
	kind       browser.Kind
	headless   bool
	launchedAt time.Time
}

// New returns an idle session.
func New() *Session {
	return &Session{}
}

// Info is a read-only view of a Session.
type Info struct {
	ID           string
	Kind         browser.Kind
	Headless     bool
	LaunchedAt   time.Time
	TracePath    string
	VideoPath    string
	HasEngine    bool
	HasRecording bool
	HasPage      bool
}

// Idle reports whether every field is unset.
func (i Info) Idle() bool {
	return !i.HasEngine && !i.HasRecording && !i.HasPage &&
		i.ID == "" && i.TracePath == "" && i.VideoPath == "" && i.LaunchedAt.IsZero()
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:           s.id,
		Kind:         s.kind,
		Headless:     s.headless,
		LaunchedAt:   s.launchedAt,
		TracePath:    s.tracePath,
		VideoPath:    s.videoPath,
		HasEngine:    s.engine != nil,
		HasRecording: s.recording != nil,
		HasPage:      s.page != nil,
	}
}

// ID returns the session id, empty while idle.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Session) active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine != nil || s.recording != nil || s.page != nil
}

type handles struct {
	engine    browser.Engine
	recording browser.RecordingContext
	page      browser.Page
	tracePath string
	videoPath string
	id        string
}

func (s *Session) handles() handles {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return handles{
		engine:    s.engine,
		recording: s.recording,
		page:      s.page,
		tracePath: s.tracePath,
		videoPath: s.videoPath,
		id:        s.id,
	}
}

func (s *Session) activate(h handles, kind browser.Kind, headless bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = h.engine
	s.recording = h.recording
	s.page = h.page
	s.tracePath = h.tracePath
	s.videoPath = h.videoPath
	s.id = h.id
	s.kind = kind
	s.headless = headless
	s.launchedAt = at
}

// reset returns the session to Idle. Idempotent.
func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = nil
	s.recording = nil
	s.page = nil
	s.tracePath = ""
	s.videoPath = ""
	s.id = ""
	s.kind = ""
	s.headless = false
	s.launchedAt = time.Time{}
}
