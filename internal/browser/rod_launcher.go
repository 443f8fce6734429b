package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"go.uber.org/zap"
)

// RodLauncher launches Chromium-family browsers through go-rod.
type RodLauncher struct {
	log *zap.Logger
}

// NewRodLauncher creates a launcher. A nil logger disables logging.
func NewRodLauncher(log *zap.Logger) *RodLauncher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RodLauncher{log: log}
}

// Launch starts a browser and connects to it over CDP. ctx bounds the
// launch only; the browser outlives it.
func (l *RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Engine, error) {
	ln, err := newLauncher(opts)
	if err != nil {
		return nil, err
	}

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := ln.Launch()
		done <- result{url: u, err: err}
	}()

	var controlURL string
	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("launch %s: %w", kindOrDefault(opts.Kind), res.err)
		}
		controlURL = res.url
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				ln.Kill()
			}
		}()
		return nil, fmt.Errorf("launch %s: %w", kindOrDefault(opts.Kind), ctx.Err())
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("connect to %s: %w", kindOrDefault(opts.Kind), err)
	}

	l.log.Info("browser launched",
		zap.String("kind", string(kindOrDefault(opts.Kind))),
		zap.Bool("headless", opts.Headless),
		zap.Strings("args", opts.Args),
		zap.Int("pid", ln.PID()))

	return newRodEngine(kindOrDefault(opts.Kind), ln, b, l.log), nil
}

func newLauncher(opts LaunchOptions) (*launcher.Launcher, error) {
	var ln *launcher.Launcher
	switch opts.Kind {
	case "", KindChromium:
		ln = launcher.New()
	case KindChrome:
		bin, found := launcher.LookPath()
		if !found {
			return nil, fmt.Errorf("chrome executable not found on this system")
		}
		ln = launcher.New().Bin(bin)
	case KindFirefox, KindWebKit:
		return nil, fmt.Errorf("browser kind %q is not supported by the rod engine (use chromium or chrome)", opts.Kind)
	default:
		return nil, fmt.Errorf("unknown browser kind %q", opts.Kind)
	}

	ln = ln.Headless(opts.Headless)
	for _, raw := range opts.Args {
		name, val, hasVal, ok := parseLaunchFlag(raw)
		if !ok {
			continue
		}
		if hasVal {
			ln = ln.Set(flags.Flag(name), val)
		} else {
			ln = ln.Set(flags.Flag(name))
		}
	}
	return ln, nil
}

// parseLaunchFlag splits "--name=value" or "--name".
func parseLaunchFlag(raw string) (name, val string, hasVal, ok bool) {
	flagStr := strings.TrimLeft(strings.TrimSpace(raw), "-")
	name, val, hasVal = strings.Cut(flagStr, "=")
	return name, val, hasVal, name != ""
}

func kindOrDefault(k Kind) Kind {
	if k == "" {
		return KindChromium
	}
	return k
}
