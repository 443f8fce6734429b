package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const snapshotTimeout = 2 * time.Second

type rodPage struct {
	page *rod.Page
	rc   *rodContext
	log  *zap.Logger
}

// record runs fn as a traced action: the action lands in the trace with its
// duration and error, followed by a DOM snapshot when enabled.
func (p *rodPage) record(name string, params map[string]string, fn func() error) error {
	started := time.Now()
	err := fn()

	tr := p.rc.trace()
	if tr == nil {
		return err
	}
	tr.Action(name, params, started, err)
	if tr.WantsSnapshots() {
		html, serr := p.page.Context(context.Background()).Timeout(snapshotTimeout).HTML()
		if serr == nil {
			tr.Snapshot(name, html)
		} else {
			p.log.Debug("dom snapshot skipped", zap.String("action", name), zap.Error(serr))
		}
	}
	return err
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	return p.record("navigate", map[string]string{"url": url}, func() error {
		pg := p.page.Context(ctx)
		if err := pg.Navigate(url); err != nil {
			return err
		}
		return pg.WaitLoad()
	})
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	return p.record("click", map[string]string{"selector": selector}, func() error {
		el, err := p.page.Context(ctx).Element(selector)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (p *rodPage) Fill(ctx context.Context, selector, value string) error {
	return p.record("fill", map[string]string{"selector": selector, "value": value}, func() error {
		el, err := p.page.Context(ctx).Element(selector)
		if err != nil {
			return err
		}
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
		return el.Input(value)
	})
}

func (p *rodPage) Hover(ctx context.Context, selector string) error {
	return p.record("hover", map[string]string{"selector": selector}, func() error {
		el, err := p.page.Context(ctx).Element(selector)
		if err != nil {
			return err
		}
		return el.Hover()
	})
}

func (p *rodPage) Press(ctx context.Context, selector, key string) error {
	params := map[string]string{"key": key}
	if selector != "" {
		params["selector"] = selector
	}
	return p.record("pressKey", params, func() error {
		c, err := parseChord(key)
		if err != nil {
			return err
		}
		pg := p.page.Context(ctx)
		if selector != "" {
			el, err := pg.Element(selector)
			if err != nil {
				return err
			}
			if err := el.Focus(); err != nil {
				return err
			}
		}

		kb := pg.Keyboard
		if c.printable {
			return kb.Type(c.key)
		}
		for _, mod := range c.modifiers {
			if err := kb.Press(mod); err != nil {
				return err
			}
			defer func(k input.Key) { _ = kb.Release(k) }(mod)
		}
		if err := kb.Press(c.key); err != nil {
			return err
		}
		return kb.Release(c.key)
	})
}

const selectOptionJS = `(sel, values) => {
	const el = document.querySelector(sel);
	if (!el) return { error: 'element not found' };
	if (el.tagName !== 'SELECT') return { error: 'element is not a <select>' };
	const wanted = new Set(values);
	const matches = (opt) => wanted.has(opt.value) || wanted.has(opt.label) || wanted.has(opt.text.trim());
	let found = 0;
	for (const opt of el.options) {
		const hit = matches(opt) && (el.multiple || found === 0);
		if (hit) found++;
		opt.selected = hit;
	}
	if (found === 0) return { error: 'no option matches ' + JSON.stringify(values) };
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return { selected: Array.from(el.selectedOptions).map((o) => o.value) };
}`

func (p *rodPage) SelectOption(ctx context.Context, selector string, values []string) ([]string, error) {
	var selected []string
	err := p.record("selectOption", map[string]string{"selector": selector, "values": strings.Join(values, ",")}, func() error {
		pg := p.page.Context(ctx)
		if _, err := pg.Element(selector); err != nil {
			return err
		}
		res, err := pg.Evaluate(&rod.EvalOptions{
			JS:      selectOptionJS,
			JSArgs:  []interface{}{selector, values},
			ByValue: true,
		})
		if err != nil {
			return err
		}
		raw, err := res.Value.MarshalJSON()
		if err != nil {
			return err
		}
		var out struct {
			Error    string   `json:"error"`
			Selected []string `json:"selected"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode selection: %w", err)
		}
		if out.Error != "" {
			return errors.New(out.Error)
		}
		selected = out.Selected
		return nil
	})
	return selected, err
}

func (p *rodPage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.record("getElementText", map[string]string{"selector": selector}, func() error {
		el, err := p.page.Context(ctx).Element(selector)
		if err != nil {
			return err
		}
		text, err = el.Text()
		return err
	})
	return text, err
}

const inspectJS = `(sel, attr) => {
	const all = document.querySelectorAll(sel);
	const el = all[0];
	if (!el) return { attached: false, count: 0 };
	const style = window.getComputedStyle(el);
	const visible = el.getClientRects().length > 0 && style.visibility !== 'hidden' && style.display !== 'none';
	const enabled = !(el.matches(':disabled') || el.getAttribute('aria-disabled') === 'true');
	const tag = el.tagName;
	const textual = tag === 'TEXTAREA' || (tag === 'INPUT' && !['checkbox', 'radio', 'button', 'submit', 'reset', 'file', 'image', 'hidden', 'range', 'color'].includes(el.type));
	const editable = enabled && ((textual && !el.readOnly) || el.isContentEditable);
	const checked = el.checked === true || el.getAttribute('aria-checked') === 'true';
	const value = ('value' in el && el.value !== undefined && el.value !== null) ? String(el.value) : '';
	return {
		attached: true,
		visible,
		enabled,
		editable,
		checked,
		text: (el.innerText !== undefined ? el.innerText : el.textContent) || '',
		value,
		attribute: attr ? el.getAttribute(attr) : null,
		count: all.length,
	};
}`

// Inspect evaluates element state once, without waiting.
func (p *rodPage) Inspect(ctx context.Context, selector, attr string) (ElementState, error) {
	var state ElementState
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      inspectJS,
		JSArgs:  []interface{}{selector, attr},
		ByValue: true,
	})
	if err != nil {
		return state, err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("decode element state: %w", err)
	}
	return state, nil
}

func (p *rodPage) WaitForNavigation(ctx context.Context) error {
	return p.record("waitForNavigation", nil, func() error {
		wait := p.page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameLoad)
		wait()
		return ctx.Err()
	})
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	data, err := p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}
