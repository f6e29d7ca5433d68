package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/torosent/vitalscope/internal/config"
	"github.com/torosent/vitalscope/internal/dashboard"
	"github.com/torosent/vitalscope/internal/host"
	"github.com/torosent/vitalscope/internal/metrics"
	"github.com/torosent/vitalscope/internal/output"
	"github.com/torosent/vitalscope/internal/runner"
	"github.com/torosent/vitalscope/internal/threshold"
	"github.com/torosent/vitalscope/internal/visibility"
	"github.com/torosent/vitalscope/internal/vitals"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, cfg.Dashboard, stderr)

	gate := visibility.NewModeGate(visibility.Mode(cfg.Mode))
	if !gate.Diagnostic() {
		logger.Debug("diagnostics disabled", "mode", cfg.Mode)
		return nil
	}
	if cfg.ConfigFile != "" && !cfg.ModePinned {
		err := config.WatchMode(cfg.ConfigFile, func(mode string) {
			gate.Set(visibility.Mode(mode))
			logger.Info("mode changed", "mode", mode)
		})
		if err != nil {
			logger.Warn("config reload disabled", "error", err)
		}
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	provider, err := newAuthProvider(cfg.Source.Auth)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
	}

	src, relay, err := newSource(cfg, provider, logger)
	if err != nil {
		return err
	}
	if c, ok := src.(interface{ Close() }); ok {
		defer c.Close()
	}

	page := host.NewPage(pageOptions(cfg))
	stats := metrics.NewCollector()
	controller := visibility.NewController(gate)
	if cfg.Show {
		controller.Toggle()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var dash *dashboard.Dashboard
	collector := vitals.NewCollector(vitals.Options{
		Timing:   page,
		Entries:  page,
		Recorder: stats,
		Logger:   logger,
		OnChange: func() {
			if dash != nil {
				dash.Refresh()
			}
		},
	})

	var stopDisplay func()
	if cfg.Dashboard {
		dash, err = dashboard.New(dashboard.Config{
			Source:          string(cfg.Source.Type),
			Target:          target(cfg),
			Duration:        cfg.Duration,
			ConfigFile:      cfg.ConfigFile,
			ToggleKey:       cfg.ToggleKey,
			DismissKey:      cfg.DismissKey,
			RefreshInterval: cfg.RefreshInterval,
		}, dashboard.Sources{
			Snapshot: collector.Snapshot,
			Stats:    stats.Stats,
			Relay:    relay,
		}, controller, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		stopDisplay = dash.Stop
	} else {
		progress := output.NewProgressReporter(controller, collector.Snapshot, cfg.RefreshInterval, stderr)
		progress.Start()
		stopSignals := watchOperatorSignals(controller, logger)
		stopDisplay = func() {
			stopSignals()
			progress.Stop()
		}
	}
	displayStopped := false
	defer func() {
		if !displayStopped {
			stopDisplay()
		}
	}()

	// Reset the entry-rate clock so it measures the page view itself.
	stats.Start()
	collector.Activate()

	r := runner.New(runner.Options{
		Source:        wrapSource(src, cfg, logger),
		Page:          page,
		Duration:      cfg.Duration,
		RatePerSecond: cfg.Source.Rate,
		Logger:        logger,
	})
	start := time.Now()
	result := r.Run(ctx)

	// The overlay stays up after a finite source ends so the operator can
	// still read it; the page view ends when they quit or the duration cap hits.
	if dash != nil && result.End == runner.EndSourceDone {
		holdOpen(ctx, cfg.Duration-time.Since(start), cfg.Duration > 0)
	}

	page.Unload()
	collector.Close()
	stopDisplay()
	displayStopped = true

	snap, ok := collector.Snapshot()
	entryStats := stats.Stats()
	entryStats.MalformedInput = page.Malformed()

	results := threshold.NewEvaluator(thresholds).Evaluate(threshold.Input{
		Snapshot:    snap,
		HasSnapshot: ok,
		Stats:       entryStats,
	})

	// The final report is a separate sink from the overlay: it ignores the
	// show/hide toggle and follows only the mode gate, so a reload to
	// production suppresses it.
	if gate.Diagnostic() {
		report := output.Report{
			GeneratedAt: time.Now(),
			PageView:    collector.PageView().String(),
			Source:      string(cfg.Source.Type),
			Target:      target(cfg),
			End:         string(result.End),
			Stats:       entryStats,
			Thresholds:  output.SummarizeThresholds(results),
		}
		report.WithSnapshot(snap, ok)
		if relay != nil {
			rs := relay()
			report.Relay = &rs
		}
		if err := output.Write(output.Format(cfg.Format), cfg.Output, report, stdout); err != nil {
			return err
		}
	}

	if result.End == runner.EndFailed {
		return fmt.Errorf("source failed: %w", result.Err)
	}
	if !threshold.AllPassed(results) {
		failed := 0
		for _, res := range results {
			if !res.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}

// holdOpen blocks until ctx ends or, when capped, the remaining lifetime runs out.
func holdOpen(ctx context.Context, remaining time.Duration, capped bool) {
	if !capped {
		<-ctx.Done()
		return
	}
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// newLogger builds the stderr logger. While the dashboard owns the terminal
// only errors are written so log lines do not tear the overlay.
func newLogger(level string, dashboardActive bool, w io.Writer) *slog.Logger {
	lvl := parseLevel(level)
	if dashboardActive && lvl < slog.LevelError {
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func target(cfg *config.Config) string {
	switch cfg.Source.Type {
	case config.SourceReplay, config.SourceHAR:
		if cfg.Source.Path == "-" {
			return "stdin"
		}
		return cfg.Source.Path
	default:
		return cfg.Source.URL
	}
}
