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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/kraklabs/inblock/pkg/modtrack"
	"github.com/kraklabs/inblock/pkg/syntax"
)

// =============================================================================
// PER-FILE ANALYSIS CACHE
// =============================================================================
//
// The file root entry always holds the analysis of the whole file. Scopes
// modified in-block are re-analyzed alone and stacked over the root entry;
// an out-of-block change drops everything. All state is guarded by one mutex
// per file, held across analyzer calls.

// DefaultMaxDepth bounds how many composite layers a root entry may stack
// before the file is re-analyzed from scratch.
const DefaultMaxDepth = 16

// Options configures a FileCache or Project.
type Options struct {
	// MaxDepth bounds composite stacking. Zero means DefaultMaxDepth.
	MaxDepth int

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Stats is a snapshot of a file cache.
type Stats struct {
	Entries    int
	RootDepth  int
	RootCached bool
	Pending    int
	OutOfBlock uint64
}

// FileCache memoizes analysis results for the scopes of one file.
type FileCache struct {
	file     string
	tree     *syntax.Tree
	tracker  *modtrack.Tracker
	analyzer Analyzer
	logger   *slog.Logger
	maxDepth int

	mu      sync.Mutex
	entries map[syntax.NodeID]*Result
	seenOOB uint64
}

// NewFileCache creates a cache for file. Edits to tree must be reported to
// tracker under the same file name.
func NewFileCache(file string, tree *syntax.Tree, tracker *modtrack.Tracker, analyzer Analyzer, opts Options) *FileCache {
	opts = opts.withDefaults()
	return &FileCache{
		file:     file,
		tree:     tree,
		tracker:  tracker,
		analyzer: analyzer,
		logger:   opts.Logger,
		maxDepth: opts.MaxDepth,
		entries:  make(map[syntax.NodeID]*Result),
		seenOOB:  tracker.OutOfBlockCount(file),
	}
}

// File returns the file name the cache was created for.
func (c *FileCache) File() string { return c.file }

// Tree returns the syntax tree the cache is indexed against.
func (c *FileCache) Tree() *syntax.Tree { return c.tree }

// Result returns the analysis result covering element. Pending in-block
// modifications of the file are merged before the lookup, so callers always
// observe their own edits. Cancellation and ErrIndexNotReady are returned
// as errors; analyzer failures come back as an InternalError result.
func (c *FileCache) Result(ctx context.Context, element syntax.NodeID) (res *Result, err error) {
	ctx, span := startQuerySpan(ctx, c.file, element)
	defer span.End()
	start := time.Now()
	defer func() {
		recordQuery(time.Since(start))
		if err != nil {
			span.RecordError(err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	scope := modtrack.AnalyzableParent(c.tree, element)
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: %s in %s", ErrStaleNode, element, c.file)
	}

	if rc, ok := c.analyzer.(ReadinessChecker); ok && !rc.IndexReady() {
		recordNotReady()
		c.logger.Debug("cache.not_ready", "file", c.file)
		return EmptyResult(), nil
	}

	c.checkOutOfBlock()
	if err := c.drain(ctx); err != nil {
		return nil, err
	}

	if r, ok := c.lookup(scope); ok {
		recordHit()
		return r, nil
	}
	recordMiss()

	r, err := c.analyze(ctx, scope)
	if err != nil {
		return nil, err
	}
	if !c.checkOutOfBlock() {
		c.entries[scope] = r
	}
	return r, nil
}

// Invalidate drops every entry and pending modification of the file.
func (c *FileCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.Invalidate(c.file)
	c.checkOutOfBlock()
}

// Stats returns a snapshot of the cache state.
func (c *FileCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{
		Entries:    len(c.entries),
		Pending:    len(c.tracker.Pending(c.file)),
		OutOfBlock: c.tracker.OutOfBlockCount(c.file),
	}
	if r, ok := c.entries[c.tree.Root()]; ok {
		st.RootCached = true
		st.RootDepth = r.Depth()
	}
	return st
}

// checkOutOfBlock evicts all entries when the out-of-block counter moved
// since the last look. It reports whether it did.
func (c *FileCache) checkOutOfBlock() bool {
	n := c.tracker.OutOfBlockCount(c.file)
	if n == c.seenOOB {
		return false
	}
	evicted := len(c.entries)
	clear(c.entries)
	c.seenOOB = n
	recordEvictions("out_of_block", evicted)
	c.logger.Debug("cache.evict.out_of_block",
		"file", c.file,
		"entries", evicted,
		"out_of_block_count", n,
	)
	return true
}

// drain merges every pending scope into the root entry.
func (c *FileCache) drain(ctx context.Context) error {
	root := c.tree.Root()
	for _, p := range c.tracker.Pending(c.file) {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.checkOutOfBlock()

		// Re-read the stamp: the scope may have been consumed or recorded
		// again since the snapshot.
		stamp, ok := c.tracker.IsPending(c.file, p.Scope)
		if !ok {
			continue
		}
		if !c.tree.Valid(p.Scope) {
			c.tracker.Consume(c.file, p.Scope, stamp)
			continue
		}

		c.evictNested(p.Scope, root)
		parent, ok := c.entries[root]
		if !ok {
			// Nothing to patch; the next root query analyzes the file.
			c.tracker.Consume(c.file, p.Scope, stamp)
			continue
		}

		depth := MergeDepth(parent.Context, p.Scope)
		if depth > c.maxDepth {
			return c.rebuild(ctx, root, depth)
		}

		fresh, err := c.analyze(ctx, p.Scope)
		if err != nil {
			return err
		}
		if c.checkOutOfBlock() {
			continue
		}
		if fresh.IsError() {
			c.entries[p.Scope] = fresh
		}

		merged := Merge(c.tree, fresh, parent, p.Scope)
		c.entries[root] = merged
		c.tracker.Consume(c.file, p.Scope, stamp)
		recordMerge(depth)
		c.logger.Debug("cache.merge",
			"file", c.file,
			"scope", p.Scope.String(),
			"kind", c.tree.Kind(p.Scope).String(),
			"depth", depth,
			"diagnostics", len(merged.Context.Diagnostics()),
		)
	}
	return nil
}

// rebuild re-analyzes the whole file when stacking would exceed maxDepth.
func (c *FileCache) rebuild(ctx context.Context, root syntax.NodeID, depth int) error {
	pending := c.tracker.Pending(c.file)
	full, err := c.analyze(ctx, root)
	if err != nil {
		return err
	}
	if c.checkOutOfBlock() {
		return nil
	}
	evicted := len(c.entries)
	clear(c.entries)
	c.entries[root] = full
	for _, p := range pending {
		c.tracker.Consume(c.file, p.Scope, p.Stamp)
	}
	recordRebuild()
	recordEvictions("depth", evicted)
	c.logger.Info("cache.depth_exceeded",
		"file", c.file,
		"depth", depth,
		"max_depth", c.maxDepth,
		"pending", len(pending),
	)
	return nil
}

// evictNested drops the entries of scope, its descendants and its
// ancestors (the root entry excepted), and entries of removed nodes.
func (c *FileCache) evictNested(scope, root syntax.NodeID) {
	evicted := 0
	for id := range c.entries {
		if id == root {
			continue
		}
		if !c.tree.Valid(id) || c.tree.IsAncestor(scope, id, false) || c.tree.IsAncestor(id, scope, true) {
			delete(c.entries, id)
			evicted++
		}
	}
	recordEvictions("in_block", evicted)
}

// lookup returns the entry of scope or of its nearest cached ancestor.
func (c *FileCache) lookup(scope syntax.NodeID) (*Result, bool) {
	if r, ok := c.entries[scope]; ok {
		return r, true
	}
	for _, a := range c.tree.Ancestors(scope) {
		if r, ok := c.entries[a]; ok {
			return r, true
		}
	}
	return nil, false
}

// analyze runs the analyzer on scope and classifies its failure.
func (c *FileCache) analyze(ctx context.Context, scope syntax.NodeID) (*Result, error) {
	kind := c.tree.Kind(scope)
	ctx, span := startAnalyzeSpan(ctx, c.file, scope, kind)
	defer span.End()

	start := time.Now()
	bctx, err := c.call(ctx, scope)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		recordAnalysis("success", elapsed)
		return Success(bctx), nil

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		recordAnalysis("canceled", elapsed)
		span.RecordError(err)
		return nil, err

	case ctx.Err() != nil:
		recordAnalysis("canceled", elapsed)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ctx.Err(), err)

	case errors.Is(err, ErrIndexNotReady):
		recordAnalysis("not_ready", elapsed)
		return nil, err

	default:
		recordAnalysis("internal_error", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("cache.analyze.failed",
			"file", c.file,
			"scope", scope.String(),
			"kind", kind.String(),
			"err", err,
		)
		return InternalError(Empty, err), nil
	}
}

func (c *FileCache) call(ctx context.Context, scope syntax.NodeID) (bctx Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAnalyzerPanic, r)
		}
	}()
	return c.analyzer.AnalyzeScope(ctx, c.tree, scope)
}
