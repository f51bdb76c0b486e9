// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/inblock/internal/errors"
	"github.com/kraklabs/inblock/internal/output"
	"github.com/kraklabs/inblock/internal/ui"
	"github.com/kraklabs/inblock/pkg/session"
)

// watchEvent is one line of `inblock --json watch` output.
type watchEvent struct {
	Time     string            `json:"time"`
	Path     string            `json:"path"`
	Op       string            `json:"op"`
	Version  int               `json:"version,omitempty"`
	Outcome  string            `json:"outcome,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Findings []session.Finding `json:"findings"`
	Error    string            `json:"error,omitempty"`
}

func newWatchEvent(ev session.Event) watchEvent {
	out := watchEvent{
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Path:     ev.Path,
		Op:       string(ev.Op),
		Version:  ev.Change.Version,
		Findings: ev.Findings,
	}
	if ev.Op == session.OpUpdate {
		out.Outcome = ev.Change.Classification.Outcome.String()
		out.Reason = ev.Change.Classification.Reason
		if ev.Change.Unchanged {
			out.Outcome = "unchanged"
		}
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	if out.Findings == nil {
		out.Findings = []session.Finding{}
	}
	return out
}

// runWatch executes the 'watch' CLI command.
//
// Flags:
//   - --debounce: Quiet period before changed files are re-analyzed
//
// Examples:
//
//	inblock watch ./src
//	inblock --json watch --debounce 250ms > events.ndjson
func runWatch(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	debounce := fs.Duration("debounce", 0, "Quiet period before re-analyzing (default from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: inblock watch [dir] [options]

Description:
  Analyze every Kotlin file below dir, then keep the analysis current as
  files change. With --json each processed file is written as one JSON
  object per line. Stop with Ctrl-C.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	root := "."
	if fs.NArg() == 1 {
		root = fs.Arg(0)
	} else if fs.NArg() > 1 {
		errors.FatalError(errors.NewInputError(
			"Too many arguments",
			fmt.Sprintf("watch takes at most one directory, got %d", fs.NArg()),
			"Run: inblock watch --help",
		), globals.JSON)
	}

	e, err := prepare(configPath, globals)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer e.Close()
	if *debounce > 0 {
		e.cfg.Watch.Debounce = *debounce
	}

	ctx, cancel := signalContext(e.logger)
	defer cancel()
	e.serveMetrics(ctx, globals)

	var emit func(watchEvent)
	if globals.JSON {
		stream := output.NewStream(os.Stdout)
		emit = func(ev watchEvent) {
			if err := stream.Write(ev); err != nil {
				e.logger.Warn("watch.output.error", "err", err)
			}
		}
	} else {
		ui.Infof("Watching %s (Ctrl-C to stop)", root)
		emit = func(ev watchEvent) { printWatchEvent(os.Stdout, ev) }
	}

	if err := watch(ctx, e, root, emit); err != nil {
		e.Close()
		errors.FatalError(err, globals.JSON)
	}
}

// watch opens every file below root, reports its findings and then follows
// changes until ctx is done.
func watch(ctx context.Context, e *env, root string, emit func(watchEvent)) error {
	w, err := session.NewWatcher(root, e.ws, session.WatcherOptions{
		Logger:   e.logger,
		Debounce: e.cfg.Watch.Debounce,
		Excludes: e.cfg.Exclude,
	})
	if err != nil {
		return errors.FromError("Cannot watch "+root, err)
	}

	found, err := session.Discover(ctx, root, session.DiscoverOptions{
		Logger:      e.logger,
		Excludes:    e.cfg.Exclude,
		MaxFileSize: e.cfg.Check.MaxFileSize,
	})
	if err != nil {
		_ = w.Close()
		return errors.FromError("Cannot read source directory", err)
	}
	for _, rel := range found.Files {
		ev := session.Event{Path: rel, Op: session.OpOpen}
		text, err := os.ReadFile(filepath.Join(found.Root, filepath.FromSlash(rel)))
		if err == nil {
			err = e.ws.Open(ctx, rel, text)
		}
		if err == nil {
			ev.Findings, _, err = e.ws.Diagnostics(ctx, rel)
		}
		ev.Err = err
		if ctx.Err() != nil {
			_ = w.Close()
			return nil
		}
		emit(newWatchEvent(ev))
	}

	e.logger.Info("watch.ready", "root", found.Root, "files", len(found.Files))
	if err := w.Run(ctx, func(ev session.Event) { emit(newWatchEvent(ev)) }); err != nil {
		return errors.FromError("Watch stopped", err)
	}
	return nil
}

// printWatchEvent writes a header line per processed file followed by its
// findings.
func printWatchEvent(w io.Writer, ev watchEvent) {
	stamp := ui.DimText(time.Now().Format("15:04:05"))
	switch {
	case ev.Error != "":
		fmt.Fprintf(w, "%s %s %s: %s\n", stamp, ui.Red.Sprint(ev.Op), ev.Path, ev.Error)
		return
	case ev.Op == string(session.OpClose):
		fmt.Fprintf(w, "%s %s %s\n", stamp, ui.DimText("closed"), ev.Path)
		return
	case ev.Outcome == "unchanged":
		return
	}

	what := ev.Op
	if ev.Outcome != "" {
		what = ui.OutcomeText(ev.Outcome)
	}
	fmt.Fprintf(w, "%s %s %s: %d finding(s)\n", stamp, what, ev.Path, len(ev.Findings))
	for _, f := range ev.Findings {
		fmt.Fprintf(w, "  %d:%d %s %s: %s\n", f.Line, f.Column, ui.SeverityText(f.Severity), f.Code, f.Message)
	}
}
