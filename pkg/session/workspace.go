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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/kotlin"
	"github.com/kraklabs/inblock/pkg/modtrack"
	"github.com/kraklabs/inblock/pkg/syntax"
)

var (
	// ErrNotOpen is returned for documents that were never opened.
	ErrNotOpen = errors.New("session: document not open")

	// ErrAlreadyOpen is returned when opening a path twice.
	ErrAlreadyOpen = errors.New("session: document already open")
)

// Change is the outcome of one text update.
type Change struct {
	Path    string
	Version int

	// Unchanged is set when the new text equals the current one; nothing
	// was parsed or recorded.
	Unchanged bool

	Classification modtrack.Classification
}

// Finding is a diagnostic resolved to a source position.
type Finding struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d:%d: %s %s: %s", f.Path, f.Line, f.Column, f.Severity, f.Code, f.Message)
}

type document struct {
	mu      sync.Mutex
	path    string
	tree    *syntax.Tree
	text    []byte
	version int
}

// Workspace owns the open documents of one project. Every text update is
// reparsed, synced into the document's tree and classified, so the analysis
// cache sees the structural edit stream it depends on.
type Workspace struct {
	logger  *slog.Logger
	parser  *kotlin.Parser
	project *analysis.Project

	mu   sync.RWMutex
	docs map[string]*document
}

// NewWorkspace creates a workspace over parser and project.
func NewWorkspace(parser *kotlin.Parser, project *analysis.Project, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		logger:  logger,
		parser:  parser,
		project: project,
		docs:    make(map[string]*document),
	}
}

// Project returns the analysis project behind the workspace.
func (w *Workspace) Project() *analysis.Project { return w.project }

// Open parses text and registers path with the project.
func (w *Workspace) Open(ctx context.Context, path string, text []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[path]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, path)
	}

	spec, err := w.parser.Parse(ctx, path, text)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	tree, err := syntax.NewTree(spec)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	w.project.Open(path, tree)
	w.docs[path] = &document{path: path, tree: tree, text: bytes.Clone(text), version: 1}
	w.logger.Debug("session.open", "path", path, "nodes", tree.Len())
	return nil
}

// Close forgets path.
func (w *Workspace) Close(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[path]; !ok {
		return
	}
	delete(w.docs, path)
	w.project.Close(path)
	w.logger.Debug("session.close", "path", path)
}

// Paths lists the open documents, sorted.
func (w *Workspace) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.docs))
	for p := range w.docs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsOpen reports whether path is open.
func (w *Workspace) IsOpen(path string) bool {
	_, err := w.doc(path)
	return err == nil
}

func (w *Workspace) doc(path string) (*document, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, path)
	}
	return d, nil
}

// Text returns a copy of the current text of path.
func (w *Workspace) Text(path string) ([]byte, error) {
	d, err := w.doc(path)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return bytes.Clone(d.text), nil
}

// Tree returns the live tree of path.
func (w *Workspace) Tree(path string) (*syntax.Tree, error) {
	d, err := w.doc(path)
	if err != nil {
		return nil, err
	}
	return d.tree, nil
}

// Update replaces the text of path. The new text is reparsed, the tree is
// synced to it and the resulting edit is recorded with the project.
func (w *Workspace) Update(ctx context.Context, path string, text []byte) (Change, error) {
	d, err := w.doc(path)
	if err != nil {
		return Change{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if bytes.Equal(d.text, text) {
		return Change{Path: path, Version: d.version, Unchanged: true}, nil
	}

	spec, err := w.parser.Parse(ctx, path, text)
	if err != nil {
		return Change{}, fmt.Errorf("update %s: %w", path, err)
	}
	edit, err := d.tree.Sync(spec)
	if err != nil {
		return Change{}, fmt.Errorf("update %s: %w", path, err)
	}
	c, err := w.project.Record(path, edit)
	if err != nil {
		return Change{}, fmt.Errorf("update %s: %w", path, err)
	}

	d.text = bytes.Clone(text)
	d.version++
	w.logger.Debug("session.update",
		"path", path,
		"version", d.version,
		"outcome", c.Outcome.String(),
		"reason", c.Reason,
		"scopes", len(c.Scopes),
	)
	return Change{Path: path, Version: d.version, Classification: c}, nil
}

// Diagnostics returns the findings of the root result of path, ordered by
// position, together with the result itself.
func (w *Workspace) Diagnostics(ctx context.Context, path string) ([]Finding, *analysis.Result, error) {
	d, err := w.doc(path)
	if err != nil {
		return nil, nil, err
	}
	res, err := w.project.Result(ctx, path, d.tree.Root())
	if err != nil {
		return nil, nil, err
	}
	return w.Findings(path, res), res, nil
}

// ResultAt returns the result covering the node at byte offset in path.
func (w *Workspace) ResultAt(ctx context.Context, path string, offset int) (*analysis.Result, error) {
	d, err := w.doc(path)
	if err != nil {
		return nil, err
	}
	return w.project.Result(ctx, path, d.tree.NodeAt(offset))
}

// Findings resolves the diagnostics of res against the current text of
// path. Diagnostics on nodes no longer in the tree are skipped.
func (w *Workspace) Findings(path string, res *analysis.Result) []Finding {
	d, err := w.doc(path)
	if err != nil || res == nil {
		return nil
	}
	d.mu.Lock()
	text := d.text
	d.mu.Unlock()

	var out []Finding
	offsets := make(map[Finding]int)
	for _, diag := range res.Context.Diagnostics() {
		n, ok := d.tree.Node(diag.Node)
		if !ok {
			continue
		}
		line, col := position(text, n.Start)
		f := Finding{
			Path:     path,
			Line:     line,
			Column:   col,
			Code:     diag.Code,
			Severity: diag.Severity.String(),
			Message:  diag.Message,
		}
		offsets[f] = n.Start
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if offsets[out[i]] != offsets[out[j]] {
			return offsets[out[i]] < offsets[out[j]]
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Invalidate drops every cached result of path.
func (w *Workspace) Invalidate(path string) error {
	if _, err := w.doc(path); err != nil {
		return err
	}
	return w.project.InvalidateAll(path)
}

// position converts a byte offset into a 1-based line and column.
func position(text []byte, offset int) (int, int) {
	if offset > len(text) {
		offset = len(text)
	}
	line := 1 + bytes.Count(text[:offset], []byte{'\n'})
	col := offset + 1
	if i := bytes.LastIndexByte(text[:offset], '\n'); i >= 0 {
		col = offset - i
	}
	return line, col
}

// contentHash returns a short stable hash of text for reports.
func contentHash(text []byte) string {
	sum := sha256.Sum256(text)
	return hex.EncodeToString(sum[:8])
}
