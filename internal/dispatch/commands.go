package dispatch

import (
	"context"
	"errors"
	"time"

	"browsernerd/internal/actions"
	"browsernerd/internal/artifacts"
	"browsernerd/internal/browser"
	"browsernerd/internal/session"

	"go.uber.org/zap"
)

type timeoutClass int

const (
	interactionTimeout timeoutClass = iota
	navigationTimeout
	assertionTimeout
	waitTimeout
)

type (
	lifecycleFunc func(ctx context.Context, args Args) (Envelope, string)
	actionFunc    func(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error)
)

// command is one row of the command table. Lifecycle commands skip the
// guard and never capture evidence.
type command struct {
	// subject names the argument used as the evidence detail.
	subject   string
	timeout   timeoutClass
	lifecycle lifecycleFunc
	action    actionFunc
}

func (d *Dispatcher) table() map[string]*command {
	return map[string]*command{
		"launch":            {lifecycle: d.launch},
		"close":             {lifecycle: d.close},
		"navigate":          {subject: "url", timeout: navigationTimeout, action: navigate},
		"click":             {subject: "selector", action: click},
		"fill":              {subject: "selector", action: fill},
		"hover":             {subject: "selector", action: hover},
		"pressKey":          {subject: "key", action: pressKey},
		"selectOption":      {subject: "selector", action: selectOption},
		"getElementText":    {subject: "selector", action: getElementText},
		"assert":            {subject: "type", timeout: assertionTimeout, action: runAssert},
		"waitForSelector":   {subject: "selector", timeout: waitTimeout, action: waitForSelector},
		"waitForNavigation": {timeout: waitTimeout, action: waitForNavigation},
		"waitForTimeout":    {action: d.waitForTimeout},
		"getCurrentURL":     {action: getCurrentURL},
		"getCurrentTitle":   {action: getCurrentTitle},
		"screenshot":        {subject: "name", action: d.screenshot},
	}
}

func navigate(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	return actions.Navigate(ctx, page, args.String("url", ""), timeout)
}

func click(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	return actions.Click(ctx, page, args.String("selector", ""), timeout)
}

func fill(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	return actions.Fill(ctx, page, args.String("selector", ""), args.String("value", ""), timeout)
}

func hover(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	return actions.Hover(ctx, page, args.String("selector", ""), timeout)
}

func pressKey(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	return actions.PressKey(ctx, page, args.String("key", ""), args.String("selector", ""), timeout)
}

func getElementText(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	return actions.GetElementText(ctx, page, args.String("selector", ""), timeout)
}

func runAssert(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	return actions.Assert(ctx, page, actions.AssertRequest{
		Type:      args.String("type", ""),
		Selector:  args.String("selector", ""),
		Value:     args.String("value", ""),
		Attribute: args.String("attribute", ""),
	}, timeout)
}

func waitForSelector(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	return actions.WaitForSelector(ctx, page, args.String("selector", ""), args.String("state", ""), timeout)
}

func waitForNavigation(ctx context.Context, page browser.Page, _ Args, timeout time.Duration) (string, error) {
	return actions.WaitForNavigation(ctx, page, timeout)
}

func getCurrentURL(ctx context.Context, page browser.Page, _ Args, timeout time.Duration) (string, error) {
	return actions.GetCurrentURL(ctx, page, timeout)
}

func getCurrentTitle(ctx context.Context, page browser.Page, _ Args, timeout time.Duration) (string, error) {
	return actions.GetCurrentTitle(ctx, page, timeout)
}

func (d *Dispatcher) launch(ctx context.Context, args Args) (Envelope, string) {
	defaults := d.opts.Launch

	headless, err := args.Bool("headless", defaults.Headless)
	if err != nil {
		return failure((&actions.InvalidArgument{Op: "launch", Reason: err.Error()}).Error()), "invalid"
	}
	launchArgs, err := args.Strings("args")
	if err != nil {
		return failure((&actions.InvalidArgument{Op: "launch", Reason: err.Error()}).Error()), "invalid"
	}
	if launchArgs == nil {
		launchArgs = defaults.Args
	}
	recordVideo, err := args.OptionalBool("recordVideo")
	if err != nil {
		return failure((&actions.InvalidArgument{Op: "launch", Reason: err.Error()}).Error()), "invalid"
	}
	if recordVideo == nil {
		v := defaults.RecordVideo
		recordVideo = &v
	}

	res, err := d.opts.Lifecycle.Launch(ctx, d.opts.Session, session.LaunchOptions{
		Kind:        browser.Kind(args.String("kind", string(defaults.Kind))),
		Headless:    headless,
		Args:        launchArgs,
		RecordVideo: recordVideo,
	})
	switch {
	case errors.Is(err, session.ErrAlreadyActive):
		return failure(err.Error()), "already_active"
	case err != nil:
		return failure(err.Error()), "error"
	}
	return success(res.Message()), "ok"
}

func (d *Dispatcher) close(ctx context.Context, _ Args) (Envelope, string) {
	report := d.opts.Lifecycle.Close(ctx, d.opts.Session)
	outcome := "ok"
	switch {
	case !report.WasActive:
		outcome = "idle"
	case len(report.Warnings) > 0:
		outcome = "degraded"
	}
	return success(report.Message()), outcome
}

func selectOption(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	values, err := args.Strings("values")
	if err != nil {
		return "", &actions.InvalidArgument{Op: "selectOption", Reason: err.Error()}
	}
	if values == nil {
		if v := args.String("value", ""); v != "" {
			values = []string{v}
		}
	}
	return actions.SelectOption(ctx, page, args.String("selector", ""), values, timeout)
}

func (d *Dispatcher) waitForTimeout(ctx context.Context, _ browser.Page, args Args, _ time.Duration) (string, error) {
	if _, ok := args["milliseconds"]; !ok {
		return "", &actions.InvalidArgument{Op: "waitForTimeout", Reason: "milliseconds is required"}
	}
	wait, err := args.Millis("milliseconds", 0)
	if err != nil {
		return "", &actions.InvalidArgument{Op: "waitForTimeout", Reason: err.Error()}
	}
	return actions.WaitForTimeout(ctx, wait, d.opts.Timeouts.MaxWait)
}

func (d *Dispatcher) screenshot(ctx context.Context, page browser.Page, args Args, timeout time.Duration) (string, error) {
	fullPage, err := args.Bool("fullPage", false)
	if err != nil {
		return "", &actions.InvalidArgument{Op: "screenshot", Reason: err.Error()}
	}
	path := d.opts.Allocator.Path(d.opts.ScreenshotsDir, args.String("name", ""), artifacts.ExtScreenshot, "screenshot")

	msg, err := actions.Screenshot(ctx, page, path, fullPage, timeout)
	if err != nil {
		return "", err
	}
	if d.opts.Index != nil {
		if err := d.opts.Index.Record(context.WithoutCancel(ctx), artifacts.Record{
			SessionID: d.opts.Session.ID(),
			Kind:      artifacts.KindScreenshot,
			Path:      path,
			Command:   "screenshot",
		}); err != nil {
			d.log.Warn("failed to index screenshot", zap.String("path", path), zap.Error(err))
		}
	}
	return msg, nil
}
