// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Report records what happened while replaying a script.
type Report struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	File      string       `json:"file"`
	Initial   []Finding    `json:"initial,omitempty"`
	Steps     []StepReport `json:"steps"`
	Failures  int          `json:"failures"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
}

// StepReport is the outcome of one replayed step.
type StepReport struct {
	Name          string    `json:"name"`
	Version       int       `json:"version"`
	Hash          string    `json:"hash"`
	Outcome       string    `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	Scopes        int       `json:"scopes"`
	Depth         int       `json:"depth"`
	Status        string    `json:"status"`
	AnalyzerCalls int       `json:"analyzer_calls"`
	Findings      []Finding `json:"findings,omitempty"`
	DurationMS    float64   `json:"duration_ms"`
	Failures      []string  `json:"failures,omitempty"`
}

// ReplayOptions configures Replay.
type ReplayOptions struct {
	Logger *slog.Logger

	// Calls reports the analyzer calls made so far. It feeds the per-step
	// call counts and the analyzer_calls expectation.
	Calls func() int

	// OnStep is called after every step.
	OnStep func(index int, step StepReport)
}

// Replay opens the script's document in ws, applies every step and queries
// the whole-file result after each one. Expectation mismatches are counted
// in the report; only edit and analysis failures abort the replay.
func Replay(ctx context.Context, ws *Workspace, s *Script, opts ReplayOptions) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	calls := opts.Calls
	if calls == nil {
		calls = func() int { return 0 }
	}

	text, err := s.InitialText()
	if err != nil {
		return nil, err
	}
	path := s.File
	if ws.IsOpen(path) {
		if _, err := ws.Update(ctx, path, text); err != nil {
			return nil, err
		}
	} else if err := ws.Open(ctx, path, text); err != nil {
		return nil, err
	}

	report := &Report{
		ID:        uuid.NewString(),
		ProjectID: ws.Project().ID(),
		File:      path,
		StartTime: time.Now().UTC().Format(time.RFC3339),
	}
	initial, _, err := ws.Diagnostics(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("initial analysis: %w", err)
	}
	report.Initial = initial

	for i, step := range s.Steps {
		label := step.Label(i)
		start := time.Now()
		before := calls()

		next, err := step.Apply(text)
		if err != nil {
			return report, fmt.Errorf("%s: %w", label, err)
		}
		change, err := ws.Update(ctx, path, next)
		if err != nil {
			return report, fmt.Errorf("%s: %w", label, err)
		}
		findings, res, err := ws.Diagnostics(ctx, path)
		if err != nil {
			return report, fmt.Errorf("%s: %w", label, err)
		}
		text = next

		sr := StepReport{
			Name:          label,
			Version:       change.Version,
			Hash:          contentHash(next),
			Outcome:       change.Classification.Outcome.String(),
			Reason:        change.Classification.Reason,
			Scopes:        len(change.Classification.Scopes),
			Depth:         res.Depth(),
			Status:        res.Status.String(),
			AnalyzerCalls: calls() - before,
			Findings:      findings,
			DurationMS:    float64(time.Since(start).Microseconds()) / 1000,
		}
		if change.Unchanged {
			sr.Outcome = "unchanged"
		}
		sr.Failures = check(step.Expect, sr)
		report.Failures += len(sr.Failures)

		logger.Info("session.replay.step",
			"step", label,
			"outcome", sr.Outcome,
			"findings", len(findings),
			"analyzer_calls", sr.AnalyzerCalls,
			"failures", len(sr.Failures),
		)
		report.Steps = append(report.Steps, sr)
		if opts.OnStep != nil {
			opts.OnStep(i, sr)
		}
	}

	report.EndTime = time.Now().UTC().Format(time.RFC3339)
	return report, nil
}

func check(want *Expect, got StepReport) []string {
	if want == nil {
		return nil
	}
	var failures []string
	if want.Outcome != "" && want.Outcome != got.Outcome {
		failures = append(failures, fmt.Sprintf("outcome: want %s, got %s", want.Outcome, got.Outcome))
	}
	if want.Codes != nil {
		gotCodes := make([]string, 0, len(got.Findings))
		for _, f := range got.Findings {
			gotCodes = append(gotCodes, f.Code)
		}
		wantCodes := append([]string(nil), want.Codes...)
		sort.Strings(gotCodes)
		sort.Strings(wantCodes)
		if fmt.Sprint(gotCodes) != fmt.Sprint(wantCodes) {
			failures = append(failures, fmt.Sprintf("codes: want %v, got %v", wantCodes, gotCodes))
		}
	}
	if want.AnalyzerCalls != nil && *want.AnalyzerCalls != got.AnalyzerCalls {
		failures = append(failures, fmt.Sprintf("analyzer calls: want %d, got %d", *want.AnalyzerCalls, got.AnalyzerCalls))
	}
	return failures
}

// SaveReport writes r as JSON to path atomically (temp file + rename).
func SaveReport(path string, r *Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write report temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}
