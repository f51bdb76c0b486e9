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

package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/inblock/pkg/modtrack"
	"github.com/kraklabs/inblock/pkg/syntax"
)

// Project owns the file caches of one analysis session. Files share one
// tracker and one analyzer; each file has its own lock.
type Project struct {
	id       string
	tracker  *modtrack.Tracker
	analyzer Analyzer
	opts     Options
	logger   *slog.Logger

	mu    sync.RWMutex
	files map[string]*FileCache
}

// NewProject creates an empty project.
func NewProject(analyzer Analyzer, opts Options) *Project {
	opts = opts.withDefaults()
	id := uuid.NewString()
	logger := opts.Logger.With("project_id", id)
	opts.Logger = logger
	return &Project{
		id:       id,
		tracker:  modtrack.NewTracker(logger),
		analyzer: analyzer,
		opts:     opts,
		logger:   logger,
		files:    make(map[string]*FileCache),
	}
}

// ID identifies the project in logs and reports.
func (p *Project) ID() string { return p.id }

// Tracker returns the modification tracker shared by all files.
func (p *Project) Tracker() *modtrack.Tracker { return p.tracker }

// Open registers file with its tree and returns its cache. Opening a file
// again replaces its cache and state.
func (p *Project) Open(file string, tree *syntax.Tree) *FileCache {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[file]; ok {
		p.tracker.Forget(file)
	}
	fc := NewFileCache(file, tree, p.tracker, p.analyzer, p.opts)
	p.files[file] = fc
	p.logger.Debug("project.open", "file", file, "nodes", tree.Len())
	return fc
}

// Close forgets file.
func (p *Project) Close(file string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, file)
	p.tracker.Forget(file)
	p.logger.Debug("project.close", "file", file)
}

// File returns the cache of an open file.
func (p *Project) File(file string) (*FileCache, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fc, ok := p.files[file]
	return fc, ok
}

// Files returns the open file names, sorted.
func (p *Project) Files() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.files))
	for f := range p.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Record classifies an edit applied to file's tree.
func (p *Project) Record(file string, edit syntax.Edit) (modtrack.Classification, error) {
	fc, ok := p.File(file)
	if !ok {
		return modtrack.Classification{}, fmt.Errorf("%w: %s", ErrUnknownFile, file)
	}
	return p.tracker.Record(file, fc.tree, edit), nil
}

// Result returns the analysis result covering element in file.
func (p *Project) Result(ctx context.Context, file string, element syntax.NodeID) (*Result, error) {
	fc, ok := p.File(file)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, file)
	}
	return fc.Result(ctx, element)
}

// InvalidateAll drops every cached result of file.
func (p *Project) InvalidateAll(file string) error {
	fc, ok := p.File(file)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFile, file)
	}
	fc.Invalidate()
	return nil
}

// InvalidateProject drops every cached result of every open file, as after
// a dependency change.
func (p *Project) InvalidateProject() {
	for _, f := range p.Files() {
		if fc, ok := p.File(f); ok {
			fc.Invalidate()
		}
	}
	p.logger.Info("project.invalidate")
}

// CheckAll queries the root result of each file with up to workers
// concurrent queries and hands each result to fn. fn may be called
// concurrently. The first error cancels the remaining queries.
func (p *Project) CheckAll(ctx context.Context, files []string, workers int, fn func(file string, res *Result) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, file := range files {
		g.Go(func() error {
			fc, ok := p.File(file)
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownFile, file)
			}
			res, err := fc.Result(ctx, fc.tree.Root())
			if err != nil {
				return fmt.Errorf("check %s: %w", file, err)
			}
			return fn(file, res)
		})
	}
	return g.Wait()
}
