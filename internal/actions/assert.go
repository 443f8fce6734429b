package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"browsernerd/internal/browser"
)

// PollInterval is how often assertions and selector waits re-check.
const PollInterval = 100 * time.Millisecond

// Assertion types.
const (
	AssertVisible   = "visible"
	AssertHidden    = "hidden"
	AssertEnabled   = "enabled"
	AssertDisabled  = "disabled"
	AssertChecked   = "checked"
	AssertText      = "text"
	AssertValue     = "value"
	AssertAttribute = "attribute"
	AssertURL       = "url"
	AssertTitle     = "title"
)

// AssertionTypes lists every supported assertion type.
var AssertionTypes = []string{
	AssertVisible, AssertHidden, AssertEnabled, AssertDisabled, AssertChecked,
	AssertText, AssertValue, AssertAttribute, AssertURL, AssertTitle,
}

// AssertRequest describes one assertion.
type AssertRequest struct {
	Type      string
	Selector  string
	Value     string
	Attribute string
}

// check evaluates the condition once and returns whether it holds plus a
// description of what was observed.
type check func(ctx context.Context, page browser.Page) (bool, string, error)

func (r AssertRequest) subject() string {
	switch r.Type {
	case AssertURL, AssertTitle:
		return fmt.Sprintf("%s contains %q", r.Type, r.Value)
	case AssertText:
		return fmt.Sprintf("%s text contains %q", r.Selector, r.Value)
	case AssertValue:
		return fmt.Sprintf("%s value equals %q", r.Selector, r.Value)
	case AssertAttribute:
		return fmt.Sprintf("%s [%s] equals %q", r.Selector, r.Attribute, r.Value)
	}
	return r.Selector + " is " + r.Type
}

func (r AssertRequest) compile() (check, error) {
	needSelector := func() error { return required("assert", "selector", r.Selector) }

	element := func(attr string, ok func(browser.ElementState) (bool, string)) (check, error) {
		if err := needSelector(); err != nil {
			return nil, err
		}
		return func(ctx context.Context, page browser.Page) (bool, string, error) {
			st, err := page.Inspect(ctx, r.Selector, attr)
			if err != nil {
				return false, "", err
			}
			if !st.Attached {
				return r.Type == AssertHidden, "element not found", nil
			}
			held, observed := ok(st)
			return held, observed, nil
		}, nil
	}

	switch r.Type {
	case AssertVisible:
		return element("", func(st browser.ElementState) (bool, string) { return st.Visible, "element is hidden" })
	case AssertHidden:
		return element("", func(st browser.ElementState) (bool, string) { return !st.Visible, "element is visible" })
	case AssertEnabled:
		return element("", func(st browser.ElementState) (bool, string) { return st.Enabled, "element is disabled" })
	case AssertDisabled:
		return element("", func(st browser.ElementState) (bool, string) { return !st.Enabled, "element is enabled" })
	case AssertChecked:
		return element("", func(st browser.ElementState) (bool, string) { return st.Checked, "element is not checked" })
	case AssertText:
		return element("", func(st browser.ElementState) (bool, string) {
			return strings.Contains(st.Text, r.Value), fmt.Sprintf("text was %q", st.Text)
		})
	case AssertValue:
		return element("", func(st browser.ElementState) (bool, string) {
			return st.Value == r.Value, fmt.Sprintf("value was %q", st.Value)
		})
	case AssertAttribute:
		if err := required("assert", "attribute", r.Attribute); err != nil {
			return nil, err
		}
		return element(r.Attribute, func(st browser.ElementState) (bool, string) {
			if st.Attribute == nil {
				return false, "attribute is absent"
			}
			return *st.Attribute == r.Value, fmt.Sprintf("attribute was %q", *st.Attribute)
		})
	case AssertURL:
		return func(ctx context.Context, page browser.Page) (bool, string, error) {
			u, err := page.URL(ctx)
			return strings.Contains(u, r.Value), fmt.Sprintf("url was %q", u), err
		}, nil
	case AssertTitle:
		return func(ctx context.Context, page browser.Page) (bool, string, error) {
			t, err := page.Title(ctx)
			return strings.Contains(t, r.Value), fmt.Sprintf("title was %q", t), err
		}, nil
	case "":
		return nil, &InvalidArgument{Op: "assert", Reason: "type is required"}
	}
	return nil, &InvalidArgument{Op: "assert", Reason: fmt.Sprintf("unknown assertion type %q (expected one of %s)", r.Type, strings.Join(AssertionTypes, ", "))}
}

// Assert polls until the assertion holds or timeout elapses.
func Assert(ctx context.Context, page browser.Page, req AssertRequest, timeout time.Duration) (string, error) {
	c, err := req.compile()
	if err != nil {
		return "", err
	}
	if err := poll(ctx, "assert", req.subject(), timeout, func(ctx context.Context) (bool, string, error) {
		return c(ctx, page)
	}); err != nil {
		return "", err
	}
	return "Assertion passed: " + req.subject(), nil
}

// poll re-evaluates cond every PollInterval. Engine errors fail at once
// unless the deadline has already passed.
func poll(ctx context.Context, op, subject string, timeout time.Duration, cond func(ctx context.Context) (bool, string, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var observed string
	for {
		ok, obs, err := cond(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return &Error{Op: op, Subject: subject, Timeout: timeout, TimedOut: true, Detail: observed, Err: err}
			}
			return wrap(ctx, op, subject, timeout, err)
		}
		if ok {
			return nil
		}
		observed = obs

		select {
		case <-ctx.Done():
			return &Error{Op: op, Subject: subject, Timeout: timeout, TimedOut: true, Detail: observed, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}
