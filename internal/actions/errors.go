package actions

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error is a failed action. The message distinguishes timeouts from other
// failures by text only.
type Error struct {
	Op       string
	Subject  string
	Detail   string
	Timeout  time.Duration
	TimedOut bool
	Err      error
}

func (e *Error) Error() string {
	doing := describe(e.Op, e.Subject)
	if e.TimedOut {
		msg := fmt.Sprintf("Timeout %dms exceeded while %s", e.Timeout.Milliseconds(), doing)
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		return msg
	}
	return fmt.Sprintf("Error while %s: %s", doing, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidArgument reports a call that cannot be attempted as given.
type InvalidArgument struct {
	Op     string
	Reason string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Op, e.Reason)
}

var gerunds = map[string]string{
	"navigate":          "navigating to",
	"click":             "clicking",
	"fill":              "filling",
	"hover":             "hovering over",
	"pressKey":          "pressing",
	"selectOption":      "selecting options in",
	"getElementText":    "reading text of",
	"assert":            "asserting",
	"waitForSelector":   "waiting for",
	"waitForNavigation": "waiting for navigation",
	"waitForTimeout":    "waiting",
	"getCurrentURL":     "reading the current URL",
	"getCurrentTitle":   "reading the page title",
	"screenshot":        "taking a screenshot",
}

func describe(op, subject string) string {
	doing, ok := gerunds[op]
	if !ok {
		doing = op
	}
	if subject == "" {
		return doing
	}
	return fmt.Sprintf("%s %q", doing, subject)
}

// wrap converts an engine error into an *Error. Deadline expiry, reported
// by the engine or observed on ctx, is a timeout.
func wrap(ctx context.Context, op, subject string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var ia *InvalidArgument
	if errors.As(err, &ia) {
		return ia
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Op: op, Subject: subject, Timeout: timeout, TimedOut: true, Err: err}
	}
	return &Error{Op: op, Subject: subject, Detail: err.Error(), Timeout: timeout, Err: err}
}
