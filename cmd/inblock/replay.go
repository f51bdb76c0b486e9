// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/inblock/internal/errors"
	"github.com/kraklabs/inblock/internal/output"
	"github.com/kraklabs/inblock/internal/ui"
	"github.com/kraklabs/inblock/pkg/session"
)

// runReplay executes the 'replay' CLI command: it applies the steps of an
// edit script to its document and shows how the cache handled each edit.
//
// Flags:
//   - --report: Also write the JSON report to this path
//
// Examples:
//
//	inblock replay testdata/swap.yaml
//	inblock replay edits.yaml --report .inblock/reports/edits.json
func runReplay(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	reportPath := fs.String("report", "", "Write the JSON report to this file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: inblock replay <script.yaml> [options]

Description:
  Open the script's Kotlin file, apply each edit step in order and analyze
  the file after every step. Each step shows whether the edit stayed inside
  a code block, how many analyzer calls it caused and the diagnostics that
  followed. Exits with code 2 when a step misses its expectations.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Missing edit script",
			"replay takes exactly one script path",
			"Run: inblock replay <script.yaml>",
		), globals.JSON)
	}

	e, err := prepare(configPath, globals)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer e.Close()

	ctx, cancel := signalContext(e.logger)
	defer cancel()
	e.serveMetrics(ctx, globals)

	var onStep func(int, session.StepReport)
	if !globals.JSON {
		ui.Header("Replaying " + fs.Arg(0))
		onStep = func(_ int, st session.StepReport) { printStep(os.Stdout, st) }
	}

	report, err := replay(ctx, e, fs.Arg(0), *reportPath, onStep)
	if report != nil && globals.JSON {
		if jerr := output.JSON(report); jerr != nil {
			errors.FatalError(jerr, true)
		}
	} else if report != nil {
		printReplaySummary(os.Stdout, report, *reportPath)
	}
	if err != nil {
		e.Close()
		errors.FatalError(err, globals.JSON)
	}
}

// replay loads and runs the script at path. The report is saved to
// reportPath when set, even for a replay that stopped early.
func replay(ctx context.Context, e *env, path, reportPath string, onStep func(int, session.StepReport)) (*session.Report, error) {
	script, err := session.LoadScript(path)
	if stderrors.Is(err, session.ErrInvalidScript) {
		return nil, errors.NewInputError("Invalid edit script", err.Error(), "Each step needs exactly one of replace, patch or append")
	}
	if err != nil {
		return nil, errors.FromError("Cannot load edit script", err)
	}

	report, runErr := session.Replay(ctx, e.ws, script, session.ReplayOptions{
		Logger: e.logger,
		Calls:  e.analyzer.Total,
		OnStep: onStep,
	})
	if report != nil && reportPath != "" {
		if err := session.SaveReport(reportPath, report); err != nil {
			return report, errors.FromError("Cannot write report", err)
		}
	}
	if stderrors.Is(runErr, session.ErrNoMatch) || stderrors.Is(runErr, session.ErrPatchMismatch) ||
		stderrors.Is(runErr, session.ErrInvalidScript) {
		return report, errors.NewInputError(
			"Edit step does not apply",
			runErr.Error(),
			"Check that every step applies to the text left by the previous one",
		)
	}
	if stderrors.Is(runErr, fs.ErrNotExist) || stderrors.Is(runErr, fs.ErrPermission) {
		return report, errors.FromError("Cannot read the script's document", runErr)
	}
	if runErr != nil {
		return report, errors.NewAnalysisError(
			"Replay stopped",
			runErr.Error(),
			"Run with -vv for details",
			runErr,
		)
	}
	if report.Failures > 0 {
		return report, errors.NewFindingsError(
			fmt.Sprintf("%d expectation(s) not met", report.Failures),
			"Compare the failing steps with the script's expect blocks",
		)
	}
	return report, nil
}

// printStep writes one step line plus its failed expectations.
func printStep(w io.Writer, st session.StepReport) {
	mark := ui.Green.Sprint("ok")
	if len(st.Failures) > 0 {
		mark = ui.Red.Sprint("FAIL")
	}
	fmt.Fprintf(w, "%-4s %s  %s  depth=%d calls=%s findings=%d %s\n",
		mark,
		st.Name,
		ui.OutcomeText(st.Outcome),
		st.Depth,
		ui.CountText(st.AnalyzerCalls),
		len(st.Findings),
		ui.DimText(fmt.Sprintf("(%.2fms)", st.DurationMS)),
	)
	if st.Reason != "" {
		fmt.Fprintf(w, "       %s %s\n", ui.DimText("reason:"), st.Reason)
	}
	for _, f := range st.Failures {
		fmt.Fprintf(w, "       %s\n", ui.Red.Sprint(f))
	}
}

func printReplaySummary(w io.Writer, r *session.Report, reportPath string) {
	fmt.Fprintln(w)
	codes := make([]string, 0, len(r.Initial))
	for _, f := range r.Initial {
		codes = append(codes, f.Code)
	}
	if len(codes) > 0 {
		fmt.Fprintf(w, "%s %s\n", ui.Label("Initial findings:"), strings.Join(codes, ", "))
	}
	fmt.Fprintf(w, "%s %d steps, %d failed expectations\n", ui.Label("Replayed"), len(r.Steps), r.Failures)
	if reportPath != "" {
		fmt.Fprintf(w, "Report written to %s\n", ui.DimText(reportPath))
	}
}
