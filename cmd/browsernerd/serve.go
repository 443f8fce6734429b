package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"browsernerd/internal/artifacts"
	"browsernerd/internal/browser"
	"browsernerd/internal/config"
	"browsernerd/internal/dispatch"
	"browsernerd/internal/logging"
	"browsernerd/internal/mcp"
	"browsernerd/internal/metrics"
	"browsernerd/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser tools over MCP on stdio",
	RunE:  runServe,
}

// runServe serves until stdin closes or SIGINT/SIGTERM arrives, then tears
// the session down.
func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logs.Get(logging.CategoryBoot).Info("received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return serve(ctx, serveDeps{
		cfg:        cfg,
		configPath: configPath,
		logs:       logs,
		launcher:   browser.NewRodLauncher(logs.Get(logging.CategoryBrowser)),
		in:         os.Stdin,
		out:        os.Stdout,
	})
}

type serveDeps struct {
	cfg        *config.Config
	configPath string
	logs       *logging.Logger
	launcher   browser.Launcher
	in         io.Reader
	out        io.Writer
}

func serve(ctx context.Context, d serveDeps) error {
	boot := d.logs.Get(logging.CategoryBoot)
	c := d.cfg

	layout := artifacts.Layout{
		Screenshots: c.ScreenshotsPath(),
		Traces:      c.TracesPath(),
		Videos:      c.VideosPath(),
	}
	if err := artifacts.EnsureLayout(layout); err != nil {
		boot.Error("failed to prepare artifact directories", zap.Error(err))
		return err
	}

	var index artifacts.Recorder
	if path := c.IndexFile(); path != "" {
		idx, err := artifacts.OpenIndex(path)
		if err != nil {
			boot.Error("failed to open artifact index", zap.String("path", path), zap.Error(err))
			return err
		}
		defer idx.Close()
		index = idx
		d.logs.Get(logging.CategoryArtifacts).Info("artifact index open", zap.String("path", path))
	}

	m := metrics.New()
	if c.Metrics.Addr != "" {
		srv, err := m.Listen(c.Metrics.Addr, d.logs.Get(logging.CategoryMetrics))
		if err != nil {
			boot.Error("failed to start metrics endpoint", zap.String("addr", c.Metrics.Addr), zap.Error(err))
			return fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if d.configPath != "" {
		if _, err := os.Stat(d.configPath); err == nil {
			w, err := config.NewWatcher(d.configPath, d.logs.Get(logging.CategoryConfig), applyReload(d.logs))
			if err == nil {
				err = w.Start(ctx)
			}
			if err != nil {
				boot.Warn("config hot reload unavailable", zap.Error(err))
			} else {
				defer w.Stop()
			}
		}
	}

	allocator := artifacts.NewAllocator()
	sess := session.New()
	life := session.NewLifecycle(session.Options{
		Launcher:         d.launcher,
		Allocator:        allocator,
		Layout:           layout,
		ViewportWidth:    c.Browser.ViewportWidth,
		ViewportHeight:   c.Browser.ViewportHeight,
		LaunchTimeout:    c.GetLaunchTimeout(),
		TraceStopTimeout: c.GetTraceStopTimeout(),
		Index:            index,
		Observer:         m,
		Logger:           d.logs.Get(logging.CategorySession),
	})
	evidence := session.NewEvidence(session.EvidenceOptions{
		Allocator: allocator,
		Dir:       layout.Screenshots,
		Timeout:   c.GetEvidenceTimeout(),
		Index:     index,
		Observer:  m,
		Logger:    d.logs.Get(logging.CategoryEvidence),
	})
	dispatcher := dispatch.New(dispatch.Options{
		Session:        sess,
		Lifecycle:      life,
		Evidence:       evidence,
		Allocator:      allocator,
		ScreenshotsDir: layout.Screenshots,
		Index:          index,
		Timeouts: dispatch.Timeouts{
			Navigation:  c.GetNavigationTimeout(),
			Interaction: c.GetInteractionTimeout(),
			Assertion:   c.GetAssertionTimeout(),
			Wait:        c.GetWaitTimeout(),
			MaxWait:     c.GetMaxWait(),
		},
		Launch: dispatch.LaunchDefaults{
			Kind:        browser.Kind(c.Browser.Kind),
			Headless:    c.Browser.Headless,
			Args:        c.Browser.Args,
			RecordVideo: c.Browser.RecordVideo,
		},
		Metrics: m,
		Logger:  d.logs.Get(logging.CategoryDispatch),
	})

	srv := mcp.NewServer(c.Name, version, dispatcher, d.logs.Get(logging.CategoryMCP))
	boot.Info("browsernerd ready",
		zap.String("artifacts", c.Artifacts.Root),
		zap.String("kind", c.Browser.Kind),
		zap.Bool("headless", c.Browser.Headless))

	err := srv.ServeStdio(ctx, d.in, d.out)

	reason := "stdin closed"
	if ctx.Err() != nil {
		reason = "signal"
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		reason = "transport error"
	}
	report := dispatcher.Shutdown(context.Background(), reason)
	if report.WasActive {
		boot.Info("session finalized on exit", zap.String("report", report.Message()))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		boot.Error("MCP transport failed", zap.Error(err))
		return err
	}
	return nil
}
