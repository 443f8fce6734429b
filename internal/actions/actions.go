// Package actions implements the per-command browser actions. Each attempts
// once within its own timeout; there are no retries.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"browsernerd/internal/browser"
)

func run(ctx context.Context, op, subject string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wrap(ctx, op, subject, timeout, fn(ctx))
}

func required(op, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &InvalidArgument{Op: op, Reason: name + " is required"}
	}
	return nil
}

// Navigate loads url and waits for the load event.
func Navigate(ctx context.Context, page browser.Page, url string, timeout time.Duration) (string, error) {
	if err := required("navigate", "url", url); err != nil {
		return "", err
	}
	err := run(ctx, "navigate", url, timeout, func(ctx context.Context) error {
		return page.Navigate(ctx, url)
	})
	if err != nil {
		return "", err
	}
	return "Navigated to " + url, nil
}

func Click(ctx context.Context, page browser.Page, selector string, timeout time.Duration) (string, error) {
	if err := required("click", "selector", selector); err != nil {
		return "", err
	}
	err := run(ctx, "click", selector, timeout, func(ctx context.Context) error {
		return page.Click(ctx, selector)
	})
	if err != nil {
		return "", err
	}
	return "Clicked " + selector, nil
}

// Fill replaces the value of an editable element.
func Fill(ctx context.Context, page browser.Page, selector, value string, timeout time.Duration) (string, error) {
	if err := required("fill", "selector", selector); err != nil {
		return "", err
	}
	err := run(ctx, "fill", selector, timeout, func(ctx context.Context) error {
		return page.Fill(ctx, selector, value)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Filled %s with %q", selector, value), nil
}

func Hover(ctx context.Context, page browser.Page, selector string, timeout time.Duration) (string, error) {
	if err := required("hover", "selector", selector); err != nil {
		return "", err
	}
	err := run(ctx, "hover", selector, timeout, func(ctx context.Context) error {
		return page.Hover(ctx, selector)
	})
	if err != nil {
		return "", err
	}
	return "Hovered over " + selector, nil
}

// PressKey presses key, optionally after focusing selector.
func PressKey(ctx context.Context, page browser.Page, key, selector string, timeout time.Duration) (string, error) {
	if err := required("pressKey", "key", key); err != nil {
		return "", err
	}
	err := run(ctx, "pressKey", key, timeout, func(ctx context.Context) error {
		return page.Press(ctx, selector, key)
	})
	if err != nil {
		return "", err
	}
	if selector != "" {
		return fmt.Sprintf("Pressed %s on %s", key, selector), nil
	}
	return "Pressed " + key, nil
}

// SelectOption selects options of a <select> by value or label.
func SelectOption(ctx context.Context, page browser.Page, selector string, values []string, timeout time.Duration) (string, error) {
	if err := required("selectOption", "selector", selector); err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", &InvalidArgument{Op: "selectOption", Reason: "at least one value is required"}
	}
	var selected []string
	err := run(ctx, "selectOption", selector, timeout, func(ctx context.Context) error {
		var err error
		selected, err = page.SelectOption(ctx, selector, values)
		return err
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Selected [%s] in %s", strings.Join(selected, ", "), selector), nil
}

func GetElementText(ctx context.Context, page browser.Page, selector string, timeout time.Duration) (string, error) {
	if err := required("getElementText", "selector", selector); err != nil {
		return "", err
	}
	var text string
	err := run(ctx, "getElementText", selector, timeout, func(ctx context.Context) error {
		var err error
		text, err = page.Text(ctx, selector)
		return err
	})
	return text, err
}

func GetCurrentURL(ctx context.Context, page browser.Page, timeout time.Duration) (string, error) {
	var url string
	err := run(ctx, "getCurrentURL", "", timeout, func(ctx context.Context) error {
		var err error
		url, err = page.URL(ctx)
		return err
	})
	return url, err
}

func GetCurrentTitle(ctx context.Context, page browser.Page, timeout time.Duration) (string, error) {
	var title string
	err := run(ctx, "getCurrentTitle", "", timeout, func(ctx context.Context) error {
		var err error
		title, err = page.Title(ctx)
		return err
	})
	return title, err
}

// Screenshot writes a PNG of the page to path.
func Screenshot(ctx context.Context, page browser.Page, path string, fullPage bool, timeout time.Duration) (string, error) {
	err := run(ctx, "screenshot", "", timeout, func(ctx context.Context) error {
		return page.Screenshot(ctx, path, fullPage)
	})
	if err != nil {
		return "", err
	}
	return "Screenshot saved to: " + path, nil
}
