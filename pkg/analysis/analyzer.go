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
	"sync"

	"github.com/kraklabs/inblock/pkg/syntax"
)

var (
	// ErrIndexNotReady is returned by analyzers whose index is still being
	// built. It is passed through to the caller and never cached.
	ErrIndexNotReady = errors.New("analysis: index not ready")

	// ErrStaleNode is returned when a query names a node that is no longer
	// part of the tree.
	ErrStaleNode = errors.New("analysis: stale node")

	// ErrAnalyzerPanic wraps a panic recovered from an analyzer.
	ErrAnalyzerPanic = errors.New("analysis: analyzer panicked")

	// ErrUnknownFile is returned by Project for files that were not opened.
	ErrUnknownFile = errors.New("analysis: unknown file")
)

// Analyzer performs full semantic analysis of exactly one scope. It may
// return ctx.Err() on cancellation or ErrIndexNotReady; any other error is
// treated as an internal analysis failure.
type Analyzer interface {
	AnalyzeScope(ctx context.Context, tree *syntax.Tree, scope syntax.NodeID) (Context, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, tree *syntax.Tree, scope syntax.NodeID) (Context, error)

func (f AnalyzerFunc) AnalyzeScope(ctx context.Context, tree *syntax.Tree, scope syntax.NodeID) (Context, error) {
	return f(ctx, tree, scope)
}

// ReadinessChecker is implemented by analyzers that depend on an index.
// While IndexReady is false, queries return an empty result.
type ReadinessChecker interface {
	IndexReady() bool
}

// Counting wraps an analyzer and counts its calls.
type Counting struct {
	inner Analyzer

	mu       sync.Mutex
	total    int
	perScope map[syntax.NodeID]int
}

// NewCounting wraps inner.
func NewCounting(inner Analyzer) *Counting {
	return &Counting{inner: inner, perScope: make(map[syntax.NodeID]int)}
}

func (c *Counting) AnalyzeScope(ctx context.Context, tree *syntax.Tree, scope syntax.NodeID) (Context, error) {
	c.mu.Lock()
	c.total++
	c.perScope[scope]++
	c.mu.Unlock()
	return c.inner.AnalyzeScope(ctx, tree, scope)
}

// IndexReady forwards to the wrapped analyzer when it reports readiness.
func (c *Counting) IndexReady() bool {
	if rc, ok := c.inner.(ReadinessChecker); ok {
		return rc.IndexReady()
	}
	return true
}

// Total returns the number of calls so far.
func (c *Counting) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Calls returns the number of calls for scope.
func (c *Counting) Calls(scope syntax.NodeID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perScope[scope]
}

// Reset zeroes the counters.
func (c *Counting) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = 0
	clear(c.perScope)
}
