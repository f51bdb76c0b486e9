// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

// TestUserError_Error verifies the Error() method implementation.
func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err:  &UserError{Message: "Cannot read edit script", Err: fmt.Errorf("file missing")},
			want: "Cannot read edit script: file missing",
		},
		{
			name: "without underlying error",
			err:  &UserError{Message: "Invalid input"},
			want: "Invalid input",
		},
		{
			name: "empty message with underlying error",
			err:  &UserError{Err: fmt.Errorf("some error")},
			want: ": some error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("UserError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestExitCodes_Uniqueness verifies that every category has its own code.
func TestExitCodes_Uniqueness(t *testing.T) {
	codes := []int{ExitSuccess, ExitConfig, ExitFindings, ExitAnalysis, ExitInput, ExitPermission, ExitNotFound, ExitInternal}
	seen := make(map[int]bool)
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate exit code %d", c)
		}
		seen[c] = true
	}
}

// TestConstructors verifies each constructor sets the right exit code.
func TestConstructors(t *testing.T) {
	underlying := fmt.Errorf("underlying")
	tests := []struct {
		name     string
		err      *UserError
		wantCode int
		wantErr  error
	}{
		{"config", NewConfigError("m", "c", "f", underlying), ExitConfig, underlying},
		{"findings", NewFindingsError("m", "f"), ExitFindings, nil},
		{"analysis", NewAnalysisError("m", "c", "f", underlying), ExitAnalysis, underlying},
		{"input", NewInputError("m", "c", "f"), ExitInput, nil},
		{"permission", NewPermissionError("m", "c", "f", underlying), ExitPermission, underlying},
		{"not found", NewNotFoundError("m", "c", "f"), ExitNotFound, nil},
		{"internal", NewInternalError("m", "c", "f", underlying), ExitInternal, underlying},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", tt.err.ExitCode, tt.wantCode)
			}
			if tt.err.Err != tt.wantErr {
				t.Errorf("Err = %v, want %v", tt.err.Err, tt.wantErr)
			}
			if tt.err.Message != "m" || tt.err.Fix != "f" {
				t.Errorf("fields not set: %+v", tt.err)
			}
		})
	}
}

// TestErrorChain verifies compatibility with errors.Is and errors.As.
func TestErrorChain(t *testing.T) {
	base := fmt.Errorf("base error")
	level1 := fmt.Errorf("level 1: %w", base)
	level2 := NewAnalysisError("level 2", "cause", "fix", level1)
	level3 := fmt.Errorf("level 3: %w", level2)

	if !errors.Is(level3, base) {
		t.Error("errors.Is should find base error through the chain")
	}
	var ue *UserError
	if !errors.As(level3, &ue) {
		t.Fatal("errors.As should extract UserError")
	}
	if ue.ExitCode != ExitAnalysis {
		t.Errorf("ExitCode = %d, want %d", ue.ExitCode, ExitAnalysis)
	}
}

// TestFromError verifies the category chosen for library errors.
func TestFromError(t *testing.T) {
	existing := NewInputError("bad flag", "", "")
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"missing file", fmt.Errorf("read script: %w", fs.ErrNotExist), ExitNotFound},
		{"permission", fmt.Errorf("open: %w", fs.ErrPermission), ExitPermission},
		{"cancelled", fmt.Errorf("check Main.kt: %w", context.Canceled), ExitAnalysis},
		{"deadline", context.DeadlineExceeded, ExitAnalysis},
		{"wrapped user error", fmt.Errorf("replay: %w", existing), ExitInput},
		{"anything else", fmt.Errorf("boom"), ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError("Check failed", tt.err)
			if got.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", got.ExitCode, tt.wantCode)
			}
			if !errors.Is(got, tt.err) && got != existing {
				t.Errorf("FromError lost the original error")
			}
		})
	}

	if FromError("x", nil) != nil {
		t.Error("FromError(nil) should be nil")
	}
}

// TestUserError_Format verifies the Format() method implementation.
func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name    string
		err     *UserError
		want    []string
		notWant []string
	}{
		{
			name: "full error",
			err: &UserError{
				Message: "Cannot load inblock configuration",
				Cause:   "cache.max_depth must be at least 1",
				Fix:     "Edit .inblock/config.yaml",
			},
			want: []string{
				"Error: Cannot load inblock configuration",
				"Cause: cache.max_depth must be at least 1",
				"Fix:   Edit .inblock/config.yaml",
			},
		},
		{
			name:    "error without cause",
			err:     &UserError{Message: "Invalid input", Fix: "Use valid format"},
			want:    []string{"Error: Invalid input", "Fix:   Use valid format"},
			notWant: []string{"Cause:"},
		},
		{
			name:    "error without fix",
			err:     &UserError{Message: "Unexpected error", Cause: "Something went wrong"},
			want:    []string{"Error: Unexpected error", "Cause: Something went wrong"},
			notWant: []string{"Fix:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(true)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Format() missing %q in %q", w, got)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(got, nw) {
					t.Errorf("Format() should not contain %q in %q", nw, got)
				}
			}
		})
	}
}

// TestUserError_Format_NoColorEnv verifies NO_COLOR disables escape codes.
func TestUserError_Format_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	got := NewConfigError("msg", "cause", "fix", nil).Format(false)
	if strings.Contains(got, "\x1b[") {
		t.Errorf("Format() contains ANSI codes with NO_COLOR set: %q", got)
	}
}

// TestUserError_ToJSON verifies JSON conversion.
func TestUserError_ToJSON(t *testing.T) {
	err := NewNotFoundError("Source root not found", "stat ./src: no such file", "")
	data, jerr := json.Marshal(err.ToJSON())
	if jerr != nil {
		t.Fatalf("Marshal: %v", jerr)
	}
	got := string(data)
	for _, want := range []string{`"error":"Source root not found"`, `"cause":"stat ./src: no such file"`, `"exit_code":6`} {
		if !strings.Contains(got, want) {
			t.Errorf("JSON missing %s in %s", want, got)
		}
	}
	if strings.Contains(got, `"fix"`) {
		t.Errorf("empty fix should be omitted: %s", got)
	}
}

// TestReport verifies the written output and returned exit code.
func TestReport(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		var buf bytes.Buffer
		if code := Report(&buf, nil, false, true); code != ExitSuccess || buf.Len() != 0 {
			t.Errorf("Report(nil) = %d, %q", code, buf.String())
		}
	})

	t.Run("user error as text", func(t *testing.T) {
		var buf bytes.Buffer
		code := Report(&buf, NewFindingsError("2 diagnostics", "Fix them"), false, true)
		if code != ExitFindings {
			t.Errorf("code = %d, want %d", code, ExitFindings)
		}
		if !strings.Contains(buf.String(), "Error: 2 diagnostics") {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("user error as JSON", func(t *testing.T) {
		var buf bytes.Buffer
		code := Report(&buf, NewInputError("bad", "", ""), true, true)
		if code != ExitInput {
			t.Errorf("code = %d, want %d", code, ExitInput)
		}
		var out ErrorJSON
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if out.Error != "bad" || out.ExitCode != ExitInput {
			t.Errorf("unexpected JSON %+v", out)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		var buf bytes.Buffer
		if code := Report(&buf, fmt.Errorf("boom"), false, true); code != ExitInternal {
			t.Errorf("code = %d, want %d", code, ExitInternal)
		}
		if buf.String() != "Error: boom\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}

// TestFatalError_Nil verifies FatalError returns for nil errors.
func TestFatalError_Nil(t *testing.T) {
	FatalError(nil, false)
}
