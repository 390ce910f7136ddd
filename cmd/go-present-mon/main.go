// Package main provides the go-present-mon CLI entry point.
//
// go-present-mon consumes GPU frame-presentation events from the OS graphics
// tracing facility (or a recorded trace file) and derives per-process,
// per-swap-chain frame statistics: inter-present intervals, render and
// display latencies, FPS, drop classification, and mixed-reality
// reprojection statistics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-present-mon/internal/config"
	"github.com/randomizedcoder/go-present-mon/internal/engine"
	"github.com/randomizedcoder/go-present-mon/internal/export"
	"github.com/randomizedcoder/go-present-mon/internal/logging"
	"github.com/randomizedcoder/go-present-mon/internal/metrics"
	"github.com/randomizedcoder/go-present-mon/internal/preflight"
	"github.com/randomizedcoder/go-present-mon/internal/trace"
	"github.com/randomizedcoder/go-present-mon/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-present-mon
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-present-mon %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// When the TUI owns the terminal, logs are discarded rather than
	// corrupting the dashboard.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewNopLogger()
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Build the event source: a recorded trace or the live session scaffold.
	var source trace.Source
	if cfg.ReplayMode() {
		replay, err := trace.OpenReplay(cfg.EtlFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Trace error: %v\n", err)
			return 1
		}
		source = replay
	} else {
		live, err := trace.NewLiveSession()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Session error: %v\n", err)
			return 1
		}
		source = live
	}

	if !cfg.SkipPreflight {
		result := preflight.RunAll(source.Clock(), cfg.OutputFile, cfg.LsrOutputFile, cfg.EtlFile)
		if !result.Passed {
			fmt.Fprintln(os.Stderr, "Preflight checks failed:")
			for _, check := range result.Checks {
				fmt.Fprintln(os.Stderr, check)
			}
			return 1
		}
	}

	// Optional host export bridge.
	var host engine.HostExport
	var wsExport *export.WebsocketExport
	if cfg.HostWsURL != "" {
		wsExport, err = export.NewWebsocketExport(cfg.HostWsURL, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Host export error: %v\n", err)
			return 1
		}
		defer wsExport.Close()
		host = wsExport
	}

	eng, err := engine.New(cfg, logger, source, host)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Engine error: %v\n", err)
		return 1
	}

	// Metrics server runs beside the merger.
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, logger)
		if err := srv.Start(); err != nil {
			logger.Error("metrics_server_failed", "error", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	scheduleRecording(cfg, eng)

	logger.Info("starting",
		"version", version,
		"replay", cfg.ReplayMode(),
		"verbosity", cfg.Verbosity,
		"metrics_addr", cfg.MetricsAddr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TUIEnabled {
		return runWithDashboard(ctx, eng, logger)
	}
	return runHeadless(ctx, eng, logger)
}

// scheduleRecording applies the -delay / -timed recording window. With no
// delay, recording starts immediately; with no -timed, it runs until toggled.
func scheduleRecording(cfg *config.Config, eng *engine.Engine) {
	start := func() { eng.SetRecording(true) }
	if cfg.Delay > 0 {
		time.AfterFunc(cfg.Delay, start)
	} else {
		start()
	}
	if cfg.Timed > 0 {
		time.AfterFunc(cfg.Delay+cfg.Timed, func() { eng.SetRecording(false) })
	}
}

// runWithDashboard runs the merger in the background and the dashboard in
// the foreground; the dashboard is the UI/control thread.
func runWithDashboard(ctx context.Context, eng *engine.Engine, logger *slog.Logger) int {
	var mergerErr error
	mergerDone := make(chan struct{})
	go func() {
		mergerErr = eng.Run(ctx)
		close(mergerDone)
	}()

	program := tea.NewProgram(tui.New(eng), tea.WithAltScreen())

	// When the merger finishes first (replay exhausted, last target exited),
	// tear the dashboard down.
	go func() {
		<-mergerDone
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		logger.Error("dashboard_failed", "error", err)
	}

	eng.RequestStop()
	<-mergerDone
	if mergerErr != nil {
		logger.Error("engine_failed", "error", mergerErr)
		return 1
	}
	return 0
}

// runHeadless runs the merger in the foreground; SIGINT/SIGTERM stop it.
func runHeadless(ctx context.Context, eng *engine.Engine, logger *slog.Logger) int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		logger.Info("signal_received")
		eng.RequestStop()
	}()

	if err := eng.Run(ctx); err != nil {
		logger.Error("engine_failed", "error", err)
		return 1
	}
	return 0
}
