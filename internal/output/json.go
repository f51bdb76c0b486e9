// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output provides utilities for consistent CLI output formatting.
//
// This package handles JSON encoding for machine-readable output of the
// inblock commands. It complements the ui package (for human-readable output)
// and errors package (for error handling).
//
// # Usage
//
// For a single JSON document (check results, replay reports):
//
//	if err := output.JSON(result); err != nil {
//	    errors.FatalError(err, true)
//	}
//
// For one JSON object per line, as emitted by watch mode:
//
//	s := output.NewStream(os.Stdout)
//	_ = s.Write(event)
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// JSON writes data as pretty-printed JSON to stdout.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as pretty-printed JSON (2-space indentation) to w.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// JSONCompactTo writes data as single-line JSON to w.
func JSONCompactTo(w io.Writer, data any) error {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// Stream writes newline-delimited JSON. It is safe for concurrent use;
// each value is written as one whole line.
type Stream struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

// NewStream returns a Stream writing to w.
func NewStream(w io.Writer) *Stream {
	return &Stream{w: w}
}

// Write encodes v as one line.
func (s *Stream) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := JSONCompactTo(s.w, v); err != nil {
		return err
	}
	s.n++
	return nil
}

// Count returns the number of values written.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// ErrorJSON represents an error in JSON format for machine consumption.
type ErrorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONErrorTo writes err as a pretty-printed {"error": ...} object to w.
func JSONErrorTo(w io.Writer, err error) error {
	if encErr := JSONTo(w, ErrorJSON{Error: err.Error()}); encErr != nil {
		return fmt.Errorf("JSON error encoding failed: %w", encErr)
	}
	return nil
}
