// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/kraklabs/inblock/internal/errors"
	"github.com/kraklabs/inblock/internal/telemetry"
	"github.com/kraklabs/inblock/internal/ui"
	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/kotlin"
	"github.com/kraklabs/inblock/pkg/sema"
	"github.com/kraklabs/inblock/pkg/session"
)

// env is everything a command needs to analyze files.
type env struct {
	cfg      *Config
	logger   *slog.Logger
	parser   *kotlin.Parser
	analyzer *analysis.Counting
	project  *analysis.Project
	ws       *session.Workspace

	shutdown  telemetry.Shutdown
	closeOnce sync.Once
}

// newEnv builds the analysis stack from cfg. Tracing is not started.
func newEnv(cfg *Config, logger *slog.Logger) *env {
	parser := kotlin.NewParser(kotlin.Options{
		Logger:           logger,
		ScriptExtensions: cfg.Kotlin.ScriptExtensions,
	})
	analyzer := analysis.NewCounting(sema.New(sema.Options{Logger: logger}))
	project := analysis.NewProject(analyzer, analysis.Options{
		MaxDepth: cfg.Cache.MaxDepth,
		Logger:   logger,
	})
	return &env{
		cfg:      cfg,
		logger:   logger,
		parser:   parser,
		analyzer: analyzer,
		project:  project,
		ws:       session.NewWorkspace(parser, project, logger),
		shutdown: func(context.Context) error { return nil },
	}
}

// Close flushes spans and releases the parser. Later calls do nothing.
func (e *env) Close() {
	e.closeOnce.Do(func() {
		if err := e.shutdown(context.Background()); err != nil {
			e.logger.Warn("telemetry.shutdown.error", "err", err)
		}
		e.parser.Close()
	})
}

// prepare loads the config and builds the environment for a command. Global
// flags override config values.
func prepare(configPath string, globals GlobalFlags) (*env, error) {
	ui.InitColors(globals.NoColor)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot load inblock configuration",
			err.Error(),
			"Fix .inblock/config.yaml or pass a valid --config path",
			err,
		)
	}

	level, _ := parseLevel(cfg.Logging.Level)
	logger := newLogger(os.Stderr, verbosityLevel(level, globals))
	slog.SetDefault(logger)

	e := newEnv(cfg, logger)
	shutdown, err := telemetry.Init(telemetry.Config{
		Enabled:        globals.Trace || cfg.Tracing.Enabled,
		ServiceVersion: version,
	})
	if err != nil {
		e.parser.Close()
		return nil, errors.NewInternalError("Cannot start tracing", err.Error(), "Run without --trace", err)
	}
	e.shutdown = shutdown
	return e, nil
}

// serveMetrics starts the metrics endpoint when an address is configured.
func (e *env) serveMetrics(ctx context.Context, globals GlobalFlags) {
	addr := globals.MetricsAddr
	if addr == "" {
		addr = e.cfg.Metrics.Addr
	}
	if addr == "" {
		return
	}
	go func() {
		if err := telemetry.ServeMetrics(ctx, addr, e.logger); err != nil {
			e.logger.Warn("metrics.http.error", "addr", addr, "err", err)
		}
	}()
}

// newLogger returns a text logger writing to w.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseLevel maps a config level name to a slog level.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging.level: unknown level %q", s)
	}
}

// verbosityLevel applies -q and -v on top of the configured level.
// -v shows info, -vv and more show debug.
func verbosityLevel(base slog.Level, globals GlobalFlags) slog.Level {
	switch {
	case globals.Verbose >= 2:
		return slog.LevelDebug
	case globals.Verbose == 1 && base > slog.LevelInfo:
		return slog.LevelInfo
	case globals.Quiet && base < slog.LevelError:
		return slog.LevelError
	default:
		return base
	}
}

// severityRank orders finding severities, most severe first.
func severityRank(s string) int {
	switch s {
	case "error":
		return 0
	case "warning":
		return 1
	default:
		return 2
	}
}

// parseFailOn returns the rank at or above which findings fail a check.
// "none" returns -1, which nothing reaches.
func parseFailOn(s string) (int, error) {
	switch strings.ToLower(s) {
	case "error":
		return 0, nil
	case "warning":
		return 1, nil
	case "info":
		return 2, nil
	case "none":
		return -1, nil
	default:
		return 0, fmt.Errorf("fail_on: unknown severity %q (want error, warning, info or none)", s)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("shutdown.signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
