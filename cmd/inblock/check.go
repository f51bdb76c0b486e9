// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/inblock/internal/errors"
	"github.com/kraklabs/inblock/internal/output"
	"github.com/kraklabs/inblock/internal/ui"
	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/session"
)

// checkOptions configures one check run.
type checkOptions struct {
	Root        string
	Workers     int
	FailOn      string
	Excludes    []string
	MaxFileSize int64
}

// checkSummary is the result of a check run, also its --json form.
type checkSummary struct {
	ProjectID     string            `json:"project_id"`
	Root          string            `json:"root"`
	Files         int               `json:"files"`
	Findings      []session.Finding `json:"findings"`
	BySeverity    map[string]int    `json:"by_severity"`
	Failed        []string          `json:"failed,omitempty"`
	Skipped       map[string]int    `json:"skipped,omitempty"`
	AnalyzerCalls int               `json:"analyzer_calls"`
	DurationMS    int64             `json:"duration_ms"`
	FailOn        string            `json:"fail_on"`
	Failing       int               `json:"failing"`
}

// runCheck executes the 'check' CLI command.
//
// Flags:
//   - --workers: Concurrent file analyses (default: check.workers)
//   - --fail-on: Lowest severity that fails the run (error, warning, info, none)
//
// Examples:
//
//	inblock check
//	inblock check ./src --fail-on warning
//	inblock --json check --workers 8
func runCheck(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	workers := fs.Int("workers", 0, "Concurrent file analyses (default from config)")
	failOn := fs.String("fail-on", "", "Lowest severity that fails the run: error, warning, info or none (default from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: inblock check [dir] [options]

Description:
  Parse and analyze every Kotlin file below dir (default: current directory)
  and print the diagnostics. Exits with code 2 when a diagnostic at or above
  the --fail-on severity is found.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	root := "."
	if fs.NArg() > 1 {
		errors.FatalError(errors.NewInputError(
			"Too many arguments",
			fmt.Sprintf("check takes at most one directory, got %d", fs.NArg()),
			"Run: inblock check --help",
		), globals.JSON)
	}
	if fs.NArg() == 1 {
		root = fs.Arg(0)
	}

	e, err := prepare(configPath, globals)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer e.Close()

	ctx, cancel := signalContext(e.logger)
	defer cancel()
	e.serveMetrics(ctx, globals)

	opts := checkOptions{
		Root:        root,
		Workers:     e.cfg.Check.Workers,
		FailOn:      e.cfg.Check.FailOn,
		Excludes:    e.cfg.Exclude,
		MaxFileSize: e.cfg.Check.MaxFileSize,
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if *failOn != "" {
		opts.FailOn = *failOn
	}

	summary, err := check(ctx, e, opts, NewProgress(NewProgressConfig(globals)))
	if summary != nil {
		if globals.JSON {
			if jerr := output.JSON(summary); jerr != nil {
				errors.FatalError(jerr, true)
			}
		} else {
			printCheck(os.Stdout, summary)
		}
	}
	if err != nil {
		e.Close()
		errors.FatalError(err, globals.JSON)
	}
}

// check discovers, opens and analyzes the files below opts.Root. A run with
// findings at or above opts.FailOn returns both the summary and a findings
// error.
func check(ctx context.Context, e *env, opts checkOptions, progress *Progress) (*checkSummary, error) {
	start := time.Now()
	threshold, err := parseFailOn(opts.FailOn)
	if err != nil {
		return nil, errors.NewInputError("Invalid --fail-on value", err.Error(), "Use error, warning, info or none")
	}

	if info, err := os.Stat(opts.Root); err == nil && !info.IsDir() {
		return nil, errors.NewInputError(
			"Not a directory: "+opts.Root,
			"check analyzes every Kotlin file below a directory",
			"Pass the directory that contains the file",
		)
	}

	progress.Phase("discover", -1)
	found, err := session.Discover(ctx, opts.Root, session.DiscoverOptions{
		Logger:      e.logger,
		Excludes:    opts.Excludes,
		MaxFileSize: opts.MaxFileSize,
	})
	progress.Done()
	if err != nil {
		return nil, errors.FromError("Cannot read source directory", err)
	}

	summary := &checkSummary{
		ProjectID:  e.project.ID(),
		Root:       found.Root,
		BySeverity: map[string]int{},
		Skipped:    found.SkipReasons,
		FailOn:     opts.FailOn,
	}

	progress.Phase("parse", len(found.Files))
	var opened []string
	for _, rel := range found.Files {
		text, err := os.ReadFile(filepath.Join(found.Root, filepath.FromSlash(rel)))
		if err != nil {
			progress.Done()
			return nil, errors.FromError("Cannot read "+rel, err)
		}
		if err := e.ws.Open(ctx, rel, text); err != nil {
			progress.Done()
			return nil, errors.FromError("Cannot parse "+rel, err)
		}
		opened = append(opened, rel)
		progress.Tick()
	}
	progress.Done()
	summary.Files = len(opened)

	var mu sync.Mutex
	progress.Phase("analyze", len(opened))
	err = e.project.CheckAll(ctx, opened, opts.Workers, func(file string, res *analysis.Result) error {
		findings := e.ws.Findings(file, res)
		mu.Lock()
		summary.Findings = append(summary.Findings, findings...)
		if res.IsError() {
			summary.Failed = append(summary.Failed, file)
			e.logger.Warn("check.analysis_failed", "file", file, "err", res.Err)
		}
		mu.Unlock()
		progress.Tick()
		return nil
	})
	progress.Done()
	if err != nil {
		return nil, errors.FromError("Analysis did not complete", err)
	}

	sort.SliceStable(summary.Findings, func(i, j int) bool {
		return summary.Findings[i].Path < summary.Findings[j].Path
	})
	sort.Strings(summary.Failed)
	for _, f := range summary.Findings {
		summary.BySeverity[f.Severity]++
		if severityRank(f.Severity) <= threshold {
			summary.Failing++
		}
	}
	summary.AnalyzerCalls = e.analyzer.Total()
	summary.DurationMS = time.Since(start).Milliseconds()

	e.logger.Info("check.complete",
		"files", summary.Files,
		"findings", len(summary.Findings),
		"analyzer_calls", summary.AnalyzerCalls,
		"duration_ms", summary.DurationMS,
	)

	if len(summary.Failed) > 0 {
		return summary, errors.NewAnalysisError(
			fmt.Sprintf("Analysis failed for %d file(s)", len(summary.Failed)),
			"The analyzer reported an internal error",
			"Run with -vv for details and report the file if it is valid Kotlin",
			nil,
		)
	}
	if summary.Failing > 0 {
		return summary, errors.NewFindingsError(
			fmt.Sprintf("%d diagnostic(s) at or above %s", summary.Failing, opts.FailOn),
			"Fix the reported problems or raise --fail-on",
		)
	}
	return summary, nil
}

// printCheck writes findings and a one-line summary for humans.
func printCheck(w io.Writer, s *checkSummary) {
	for _, f := range s.Findings {
		fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n",
			f.Path, f.Line, f.Column, ui.SeverityText(f.Severity), f.Code, f.Message)
	}
	if len(s.Findings) > 0 {
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%s %d files, %d errors, %d warnings, %s analyzer calls (%dms)\n",
		ui.Label("Checked"),
		s.Files,
		s.BySeverity["error"],
		s.BySeverity["warning"],
		ui.CountText(s.AnalyzerCalls),
		s.DurationMS,
	)
	for reason, n := range s.Skipped {
		fmt.Fprintf(w, "  %s %s: %d\n", ui.DimText("skipped"), reason, n)
	}
}
