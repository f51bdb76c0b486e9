// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the inblock CLI.
//
// This package defines UserError, a type that carries structured error information
// including what went wrong, why it happened, and how to fix it. It also defines
// consistent exit codes for different error categories.
//
// # Usage Example
//
//	err := errors.NewConfigError(
//	    "Cannot load inblock configuration",
//	    "cache.max_depth must be at least 1",
//	    "Edit .inblock/config.yaml and set a positive max_depth",
//	    underlyingErr,
//	)
//	errors.FatalError(err, false)
//
// # Formatted Output
//
// The Format() method provides colored terminal output:
//
//	Error: Cannot read edit script
//	Cause: open edits.yaml: no such file or directory
//	Fix:   Check the script path
//
// For JSON output:
//
//	json.NewEncoder(os.Stderr).Encode(err.ToJSON())
//	// {"error": "...", "cause": "...", "fix": "...", "exit_code": 6}
//
// # Exit Codes
//
//   - ExitSuccess (0): Successful execution
//   - ExitConfig (1): Configuration errors (missing/invalid config)
//   - ExitFindings (2): The check found diagnostics, or a replay missed its expectations
//   - ExitAnalysis (3): Analysis could not complete (analyzer failure, cancellation)
//   - ExitInput (4): Invalid user input (bad arguments, malformed scripts)
//   - ExitPermission (5): Permission denied (file access, etc.)
//   - ExitNotFound (6): Resource not found (source root, script, file)
//   - ExitInternal (10): Internal errors (bugs, panics)
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitConfig indicates configuration errors (missing/invalid config files).
	ExitConfig = 1

	// ExitFindings indicates that the run succeeded but reported problems:
	// diagnostics at or above the failure severity, or failed replay checks.
	ExitFindings = 2

	// ExitAnalysis indicates that analysis could not complete.
	ExitAnalysis = 3

	// ExitInput indicates invalid user input (bad arguments, validation errors).
	ExitInput = 4

	// ExitPermission indicates permission denied errors (file access, etc.).
	ExitPermission = 5

	// ExitNotFound indicates resource not found errors (root, script, file).
	ExitNotFound = 6

	// ExitInternal indicates internal errors (bugs, unexpected panics).
	// Exit code 10 signals "this is a bug that should be reported".
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

func newError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: code,
		Err:      err,
	}
}

// NewConfigError creates a configuration error with exit code ExitConfig.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newError(ExitConfig, msg, cause, fix, err)
}

// NewFindingsError reports a run that completed with problems to show.
//
// Example:
//
//	return NewFindingsError(
//	    "3 diagnostics at error severity",
//	    "Fix the reported problems or lower --fail-on",
//	)
func NewFindingsError(msg, fix string) *UserError {
	return newError(ExitFindings, msg, "", fix, nil)
}

// NewAnalysisError creates an analysis error with exit code ExitAnalysis.
//
// Use this when the analyzer failed or the run was interrupted before
// results were available.
func NewAnalysisError(msg, cause, fix string, err error) *UserError {
	return newError(ExitAnalysis, msg, cause, fix, err)
}

// NewInputError creates an input validation error with exit code ExitInput.
// Input errors typically do not wrap an underlying error.
func NewInputError(msg, cause, fix string) *UserError {
	return newError(ExitInput, msg, cause, fix, nil)
}

// NewPermissionError creates a permission denied error with exit code ExitPermission.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return newError(ExitPermission, msg, cause, fix, err)
}

// NewNotFoundError creates a resource not found error with exit code ExitNotFound.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newError(ExitNotFound, msg, cause, fix, nil)
}

// NewInternalError creates an internal error with exit code ExitInternal.
//
// Internal errors indicate bugs and should be reported to the maintainers.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newError(ExitInternal, msg, cause, fix, err)
}

// FromError converts err into a UserError, choosing the category from the
// error chain. A UserError in the chain is returned as is.
func FromError(msg string, err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue
	}
	cause := err.Error()
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return &UserError{Message: msg, Cause: cause, Fix: "Check that the path exists", ExitCode: ExitNotFound, Err: err}
	case stderrors.Is(err, fs.ErrPermission):
		return NewPermissionError(msg, cause, "Check file permissions", err)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return NewAnalysisError(msg, "The run was interrupted", "Run the command again", err)
	default:
		return NewInternalError(msg, cause, "This is a bug. Please report it at github.com/kraklabs/inblock/issues", err)
	}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output includes colored sections for Error (red/bold), Cause (yellow),
// and Fix (green). Color output respects the NO_COLOR environment variable
// and can be explicitly disabled with the noColor parameter. Empty Cause or
// Fix fields are omitted.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// Report writes err to w as colored text or JSON and returns the exit code
// to use. Non-UserError values map to ExitInternal.
func Report(w io.Writer, err error, jsonOutput, noColor bool) int {
	if err == nil {
		return ExitSuccess
	}
	var ue *UserError
	if !stderrors.As(err, &ue) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return ExitInternal
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(w, ue.Format(noColor))
	}
	return ue.ExitCode
}

// FatalError prints the error and exits with the appropriate code.
//
// This function never returns for a non-nil error - it always calls os.Exit().
//
//	if err := doSomething(); err != nil {
//	    errors.FatalError(err, jsonMode)
//	}
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	os.Exit(Report(os.Stderr, err, jsonOutput, false))
}
