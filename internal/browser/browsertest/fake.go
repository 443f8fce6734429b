// Package browsertest provides in-memory fakes of the browser engine
// contract for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"browsernerd/internal/browser"
)

// --- Launcher ---

// Launcher hands out fake engines.
type Launcher struct {
	mu sync.Mutex

	// LaunchError fails the next launches when set.
	LaunchError error
	// Block, when non-nil, makes Launch wait until it is closed or ctx ends.
	Block chan struct{}
	// Engine configures every engine launched.
	Engine EngineConfig

	Launches []browser.LaunchOptions
	Engines  []*Engine
}

// EngineConfig injects failures into engines created by a Launcher.
type EngineConfig struct {
	RecordingError error
	TraceStartErr  error
	TraceStopErr   error
	PageError      error
	CloseError     error
	// Page configures the page created by NewPage.
	Page PageConfig
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Engine, error) {
	l.mu.Lock()
	block := l.Block
	l.Launches = append(l.Launches, opts)
	launchErr := l.LaunchError
	cfg := l.Engine
	l.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if launchErr != nil {
		return nil, launchErr
	}

	e := &Engine{cfg: cfg, Options: opts, connected: true}
	l.mu.Lock()
	l.Engines = append(l.Engines, e)
	l.mu.Unlock()
	return e, nil
}

// Last returns the most recently launched engine.
func (l *Launcher) Last() *Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Engines) == 0 {
		return nil
	}
	return l.Engines[len(l.Engines)-1]
}

// --- Engine ---

// Engine is a fake browser process.
type Engine struct {
	cfg     EngineConfig
	Options browser.LaunchOptions

	mu         sync.Mutex
	connected  bool
	closed     int
	probes     int
	recordings []*RecordingContext
}

func (e *Engine) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.probes++
	return e.connected
}

// Disconnect simulates the browser crashing.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = false
}

// Closed reports how many times Close was called.
func (e *Engine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) NewRecordingContext(ctx context.Context, opts browser.RecordingOptions) (browser.RecordingContext, error) {
	if e.cfg.RecordingError != nil {
		return nil, e.cfg.RecordingError
	}
	rc := &RecordingContext{engine: e, Options: opts}
	e.mu.Lock()
	e.recordings = append(e.recordings, rc)
	e.mu.Unlock()
	return rc, nil
}

// Recording returns the first recording context.
func (e *Engine) Recording() *RecordingContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.recordings) == 0 {
		return nil
	}
	return e.recordings[0]
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed++
	wasConnected := e.connected
	e.connected = false
	e.mu.Unlock()

	if e.cfg.CloseError != nil {
		return e.cfg.CloseError
	}
	if !wasConnected {
		return browser.ErrDisconnected
	}
	for _, rc := range e.recordings {
		if rc.Options.VideoPath != "" {
			_ = writeFile(rc.Options.VideoPath, []byte("mjpeg"))
		}
	}
	return nil
}

// --- RecordingContext ---

// RecordingContext is a fake isolated context.
type RecordingContext struct {
	engine  *Engine
	Options browser.RecordingOptions

	mu        sync.Mutex
	Trace     *browser.TraceOptions
	TraceStop []string
	Pages     []*Page
}

func (c *RecordingContext) StartTracing(opts browser.TraceOptions) error {
	if c.engine.cfg.TraceStartErr != nil {
		return c.engine.cfg.TraceStartErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Trace = &opts
	return nil
}

func (c *RecordingContext) StopTracing(ctx context.Context, path string) error {
	c.mu.Lock()
	c.TraceStop = append(c.TraceStop, path)
	c.mu.Unlock()

	if c.engine.cfg.TraceStopErr != nil {
		return c.engine.cfg.TraceStopErr
	}
	if !c.engine.IsConnected() {
		return browser.ErrDisconnected
	}
	return writeFile(path, []byte("PK"))
}

func (c *RecordingContext) NewPage(ctx context.Context) (browser.Page, error) {
	if c.engine.cfg.PageError != nil {
		return nil, c.engine.cfg.PageError
	}
	p := NewPage(c.engine.cfg.Page)
	c.mu.Lock()
	c.Pages = append(c.Pages, p)
	c.mu.Unlock()
	return p, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// --- Page ---

// PageConfig seeds a fake page.
type PageConfig struct {
	URL   string
	Title string
	// Elements maps selectors to their state. Unknown selectors are absent.
	Elements map[string]browser.ElementState
	// Errors forces an error for an operation name ("click", "fill", ...).
	Errors map[string]error
	// Options maps select selectors to their option values.
	Options map[string][]string
	// Hang makes the named operations block until ctx ends.
	Hang map[string]bool
	// Panic makes the named operation panic.
	Panic map[string]bool
}

// Call records one page operation.
type Call struct {
	Op       string
	Selector string
	Value    string
}

// Page is a scriptable fake tab.
type Page struct {
	mu       sync.Mutex
	cfg      PageConfig
	url      string
	title    string
	elements map[string]browser.ElementState
	calls    []Call
	navWait  chan struct{}
}

// NewPage creates a fake page from cfg.
func NewPage(cfg PageConfig) *Page {
	elements := make(map[string]browser.ElementState, len(cfg.Elements))
	for k, v := range cfg.Elements {
		elements[k] = v
	}
	url := cfg.URL
	if url == "" {
		url = "about:blank"
	}
	return &Page{cfg: cfg, url: url, title: cfg.Title, elements: elements}
}

// Calls returns the operations performed so far.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// SetElement changes an element's state, simulating page scripts.
func (p *Page) SetElement(selector string, state browser.ElementState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = state
}

// RemoveElement detaches an element.
func (p *Page) RemoveElement(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// SetTitle changes document.title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// SetURL changes the current URL without navigating.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// CompleteNavigation releases a pending WaitForNavigation.
func (p *Page) CompleteNavigation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navWait != nil {
		close(p.navWait)
		p.navWait = nil
	}
}

func (p *Page) begin(ctx context.Context, op, selector, value string) error {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Op: op, Selector: selector, Value: value})
	hang := p.cfg.Hang[op]
	panics := p.cfg.Panic[op]
	err := p.cfg.Errors[op]
	p.mu.Unlock()

	if panics {
		panic(fmt.Sprintf("fake page: %s panicked", op))
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// find returns the element or waits for ctx, which is how a real engine
// reports a missing selector.
func (p *Page) find(ctx context.Context, selector string) (browser.ElementState, error) {
	p.mu.Lock()
	el, ok := p.elements[selector]
	p.mu.Unlock()
	if ok {
		return el, nil
	}
	<-ctx.Done()
	return browser.ElementState{}, ctx.Err()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.begin(ctx, "navigate", "", url); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	if p.title == "" {
		p.title = "Example Domain"
	}
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.begin(ctx, "click", selector, ""); err != nil {
		return err
	}
	el, err := p.find(ctx, selector)
	if err != nil {
		return err
	}
	if !el.Visible {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	if err := p.begin(ctx, "fill", selector, value); err != nil {
		return err
	}
	el, err := p.find(ctx, selector)
	if err != nil {
		return err
	}
	if !el.Editable {
		return errors.New("element is not an <input>, <textarea> or [contenteditable] element")
	}
	el.Value = value
	p.SetElement(selector, el)
	return nil
}

func (p *Page) Hover(ctx context.Context, selector string) error {
	if err := p.begin(ctx, "hover", selector, ""); err != nil {
		return err
	}
	_, err := p.find(ctx, selector)
	return err
}

func (p *Page) Press(ctx context.Context, selector, key string) error {
	if err := p.begin(ctx, "pressKey", selector, key); err != nil {
		return err
	}
	if selector == "" {
		return nil
	}
	_, err := p.find(ctx, selector)
	return err
}

func (p *Page) SelectOption(ctx context.Context, selector string, values []string) ([]string, error) {
	if err := p.begin(ctx, "selectOption", selector, fmt.Sprint(values)); err != nil {
		return nil, err
	}
	if _, err := p.find(ctx, selector); err != nil {
		return nil, err
	}
	p.mu.Lock()
	available := p.cfg.Options[selector]
	p.mu.Unlock()

	var selected []string
	for _, want := range values {
		for _, opt := range available {
			if opt == want {
				selected = append(selected, opt)
			}
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no option matches %q", values)
	}
	return selected, nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	if err := p.begin(ctx, "getElementText", selector, ""); err != nil {
		return "", err
	}
	el, err := p.find(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (p *Page) Inspect(ctx context.Context, selector, attr string) (browser.ElementState, error) {
	if err := p.begin(ctx, "inspect", selector, attr); err != nil {
		return browser.ElementState{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return browser.ElementState{}, nil
	}
	el.Attached = true
	if el.Count == 0 {
		el.Count = 1
	}
	return el, nil
}

func (p *Page) WaitForNavigation(ctx context.Context) error {
	if err := p.begin(ctx, "waitForNavigation", "", ""); err != nil {
		return err
	}
	p.mu.Lock()
	if p.navWait == nil {
		p.navWait = make(chan struct{})
	}
	wait := p.navWait
	p.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := p.begin(ctx, "url", "", ""); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := p.begin(ctx, "title", "", ""); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if err := p.begin(ctx, "screenshot", "", path); err != nil {
		return err
	}
	return writeFile(path, []byte("\x89PNG"))
}
