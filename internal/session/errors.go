package session

import "errors"

var (
	// ErrAlreadyActive is returned by Launch while a session is open.
	ErrAlreadyActive = errors.New("a browser session is already active; close it before launching another")
	// ErrNoActiveSession is returned by the guard when no usable page exists.
	ErrNoActiveSession = errors.New("no active browser session; call launch first")
)

// LaunchError reports a failed launch sequence. Every partially created
// handle has been released by the time it is returned.
type LaunchError struct {
	Detail string
	Err    error
}

func (e *LaunchError) Error() string {
	return "failed to launch browser: " + e.Detail
}

func (e *LaunchError) Unwrap() error { return e.Err }
