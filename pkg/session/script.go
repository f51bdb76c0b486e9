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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidScript is returned for malformed edit scripts.
	ErrInvalidScript = errors.New("session: invalid edit script")

	// ErrNoMatch is returned when a replace step finds nothing to replace.
	ErrNoMatch = errors.New("session: replace text not found")

	// ErrPatchMismatch is returned when a hunk does not fit the text.
	ErrPatchMismatch = errors.New("session: patch does not apply")
)

// Script is a recorded sequence of edits to one file.
//
//	file: src/Main.kt
//	steps:
//	  - name: bump literal
//	    replace: {old: "val a = 1", new: "val a = 2"}
//	    expect: {outcome: in_block}
//	  - patch: |
//	      @@ -1,1 +1,1 @@
//	      -fun main() {
//	      +fun main(args: Array<String>) {
type Script struct {
	// File is the document path, relative to the script's directory.
	File string `yaml:"file"`

	// Source is the initial text. When empty the file is read from disk.
	Source string `yaml:"source,omitempty"`

	Steps []Step `yaml:"steps"`

	dir string
}

// Step is one edit. Exactly one of Replace, Patch or Append is set.
type Step struct {
	Name    string   `yaml:"name,omitempty"`
	Replace *Replace `yaml:"replace,omitempty"`
	Patch   string   `yaml:"patch,omitempty"`
	Append  string   `yaml:"append,omitempty"`
	Expect  *Expect  `yaml:"expect,omitempty"`
}

// Replace substitutes Old with New, once unless All is set.
type Replace struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
	All bool   `yaml:"all,omitempty"`
}

// Expect holds the checks run after a step.
type Expect struct {
	// Outcome is ignored, in_block or out_of_block.
	Outcome string `yaml:"outcome,omitempty"`

	// Codes are the diagnostic codes of the whole file after the step, in
	// any order. Nil skips the check; an empty list expects a clean file.
	Codes []string `yaml:"codes,omitempty"`

	// AnalyzerCalls is the number of analyzer calls the step may cause.
	AnalyzerCalls *int `yaml:"analyzer_calls,omitempty"`
}

// LoadScript reads and validates an edit script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// ParseScript decodes and validates an edit script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the script's structure.
func (s *Script) Validate() error {
	if strings.TrimSpace(s.File) == "" {
		return fmt.Errorf("%w: file is required", ErrInvalidScript)
	}
	for i, st := range s.Steps {
		actions := 0
		if st.Replace != nil {
			actions++
			if st.Replace.Old == "" {
				return fmt.Errorf("%w: step %d: replace.old is empty", ErrInvalidScript, i+1)
			}
		}
		if st.Patch != "" {
			actions++
		}
		if st.Append != "" {
			actions++
		}
		if actions != 1 {
			return fmt.Errorf("%w: step %d: want exactly one of replace, patch, append", ErrInvalidScript, i+1)
		}
		if st.Expect != nil {
			switch st.Expect.Outcome {
			case "", "ignored", "in_block", "out_of_block":
			default:
				return fmt.Errorf("%w: step %d: unknown outcome %q", ErrInvalidScript, i+1, st.Expect.Outcome)
			}
		}
	}
	return nil
}

// Path returns the location of the script's document on disk.
func (s *Script) Path() string {
	if filepath.IsAbs(s.File) || s.dir == "" {
		return s.File
	}
	return filepath.Join(s.dir, s.File)
}

// InitialText returns Source, or the document read from disk.
func (s *Script) InitialText() ([]byte, error) {
	if s.Source != "" {
		return []byte(s.Source), nil
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.File, err)
	}
	return data, nil
}

// Label names the step for reports.
func (st Step) Label(index int) string {
	if st.Name != "" {
		return st.Name
	}
	switch {
	case st.Replace != nil:
		return fmt.Sprintf("step %d (replace)", index+1)
	case st.Patch != "":
		return fmt.Sprintf("step %d (patch)", index+1)
	default:
		return fmt.Sprintf("step %d (append)", index+1)
	}
}

// Apply returns text with the step's edit applied.
func (st Step) Apply(text []byte) ([]byte, error) {
	switch {
	case st.Replace != nil:
		old := []byte(st.Replace.Old)
		if !bytes.Contains(text, old) {
			return nil, fmt.Errorf("%w: %q", ErrNoMatch, st.Replace.Old)
		}
		n := 1
		if st.Replace.All {
			n = -1
		}
		return bytes.Replace(text, old, []byte(st.Replace.New), n), nil
	case st.Patch != "":
		hunks, err := diff.ParseHunks([]byte(st.Patch))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
		}
		return applyHunks(text, hunks)
	default:
		out := bytes.Clone(text)
		return append(out, st.Append...), nil
	}
}

// applyHunks applies unified-diff hunks in order. Context and removed lines
// must match the text exactly.
func applyHunks(text []byte, hunks []*diff.Hunk) ([]byte, error) {
	lines := strings.Split(string(text), "\n")
	out := make([]string, 0, len(lines))
	idx := 0

	for _, h := range hunks {
		start := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 {
			// Pure insertion after OrigStartLine.
			start = int(h.OrigStartLine)
		}
		if start < idx || start > len(lines) {
			return nil, fmt.Errorf("%w: hunk at line %d out of order", ErrPatchMismatch, h.OrigStartLine)
		}
		out = append(out, lines[idx:start]...)
		idx = start

		body := strings.TrimSuffix(string(h.Body), "\n")
		for _, l := range strings.Split(body, "\n") {
			if strings.HasPrefix(l, `\`) {
				continue
			}
			op, content := byte(' '), ""
			if l != "" {
				op, content = l[0], l[1:]
			}
			switch op {
			case '+':
				out = append(out, content)
			case '-', ' ':
				if idx >= len(lines) || lines[idx] != content {
					return nil, fmt.Errorf("%w: line %d: want %q", ErrPatchMismatch, idx+1, content)
				}
				if op == ' ' {
					out = append(out, content)
				}
				idx++
			default:
				return nil, fmt.Errorf("%w: bad hunk line %q", ErrPatchMismatch, l)
			}
		}
	}
	out = append(out, lines[idx:]...)
	return []byte(strings.Join(out, "\n")), nil
}
