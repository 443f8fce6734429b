package session

import "browsernerd/internal/browser"

// EnsureActive returns the session page when a page exists and the engine
// answers a connectivity probe. The check is point-in-time only: the browser
// may still go away before the caller uses the page.
func EnsureActive(s *Session) (browser.Page, error) {
	h := s.handles()
	if h.page == nil || h.engine == nil {
		return nil, ErrNoActiveSession
	}
	if !h.engine.IsConnected() {
		return nil, ErrNoActiveSession
	}
	return h.page, nil
}
