package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"browsernerd/internal/browser"
)

// Selector states accepted by WaitForSelector.
var SelectorStates = []string{"attached", "detached", "visible", "hidden"}

// WaitForSelector waits until selector reaches state. An empty state means
// visible.
func WaitForSelector(ctx context.Context, page browser.Page, selector, state string, timeout time.Duration) (string, error) {
	if err := required("waitForSelector", "selector", selector); err != nil {
		return "", err
	}
	if state == "" {
		state = "visible"
	}

	var reached func(browser.ElementState) bool
	switch state {
	case "attached":
		reached = func(st browser.ElementState) bool { return st.Attached }
	case "detached":
		reached = func(st browser.ElementState) bool { return !st.Attached }
	case "visible":
		reached = func(st browser.ElementState) bool { return st.Attached && st.Visible }
	case "hidden":
		reached = func(st browser.ElementState) bool { return !st.Attached || !st.Visible }
	default:
		return "", &InvalidArgument{Op: "waitForSelector", Reason: fmt.Sprintf("unknown state %q (expected one of %s)", state, strings.Join(SelectorStates, ", "))}
	}

	subject := selector + " to be " + state
	err := poll(ctx, "waitForSelector", subject, timeout, func(ctx context.Context) (bool, string, error) {
		st, err := page.Inspect(ctx, selector, "")
		if err != nil {
			return false, "", err
		}
		return reached(st), "", nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Element %s is %s", selector, state), nil
}

// WaitForNavigation waits for the next load of the main frame.
func WaitForNavigation(ctx context.Context, page browser.Page, timeout time.Duration) (string, error) {
	err := run(ctx, "waitForNavigation", "", timeout, func(ctx context.Context) error {
		return page.WaitForNavigation(ctx)
	})
	if err != nil {
		return "", err
	}
	url, err := page.URL(ctx)
	if err != nil || url == "" {
		return "Navigation completed", nil
	}
	return "Navigation completed: " + url, nil
}

// WaitForTimeout sleeps for d, capped at max.
func WaitForTimeout(ctx context.Context, d, max time.Duration) (string, error) {
	if d < 0 {
		return "", &InvalidArgument{Op: "waitForTimeout", Reason: "milliseconds must not be negative"}
	}
	if max > 0 && d > max {
		d = max
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return "", wrap(ctx, "waitForTimeout", "", d, ctx.Err())
	}
	return fmt.Sprintf("Waited %dms", d.Milliseconds()), nil
}
