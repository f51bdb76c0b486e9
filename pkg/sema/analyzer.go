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

package sema

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/syntax"
)

// Diagnostic codes reported by the analyzer.
const (
	CodeUnresolvedReference = "UNRESOLVED_REFERENCE"
	CodeUnusedVariable      = "UNUSED_VARIABLE"
	CodeRedeclaration       = "REDECLARATION"
)

// checkEvery is how many nodes are visited between cancellation checks.
const checkEvery = 256

// Options configures an Analyzer.
type Options struct {
	Logger *slog.Logger

	// Ready reports whether the declaration index is loaded. Nil means
	// always ready.
	Ready func() bool
}

// Analyzer resolves names within one scope of a file. Names declared
// outside the scope are resolved against the tree but never reported on,
// so analyzing a scope alone yields the same findings for its nodes as
// analyzing the whole file.
type Analyzer struct {
	logger *slog.Logger
	ready  func() bool
}

// New creates an analyzer.
func New(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger, ready: opts.Ready}
}

// IndexReady implements analysis.ReadinessChecker.
func (a *Analyzer) IndexReady() bool {
	return a.ready == nil || a.ready()
}

// AnalyzeScope implements analysis.Analyzer.
func (a *Analyzer) AnalyzeScope(ctx context.Context, tree *syntax.Tree, scope syntax.NodeID) (analysis.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !tree.Valid(scope) {
		return nil, fmt.Errorf("%w: %s", analysis.ErrStaleNode, scope)
	}
	if !a.IndexReady() {
		return nil, analysis.ErrIndexNotReady
	}

	start := time.Now()
	r := newResolver(tree)
	b := analysis.NewBindings()

	var err error
	visited := 0
	tree.Walk(scope, func(n syntax.Node) bool {
		if err != nil {
			return false
		}
		visited++
		if visited%checkEvery == 0 {
			if err = ctx.Err(); err != nil {
				return false
			}
		}

		switch {
		case n.Kind == syntax.KindLiteral:
			b.Bind(analysis.Binding{Node: n.ID, Type: literalType(n.Text)})
		case declares(n.Kind):
			a.declaration(r, b, n)
		case r.isReference(n):
			a.reference(r, b, n)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug("sema.analyze",
		"scope", scope.String(),
		"kind", tree.Kind(scope).String(),
		"nodes", visited,
		"diagnostics", len(b.Diagnostics()),
		"duration", time.Since(start),
	)
	return b, nil
}

func (a *Analyzer) declaration(r *resolver, b *analysis.Bindings, n syntax.Node) {
	name := r.declName(n.ID)
	if name == "" {
		return
	}
	b.Bind(analysis.Binding{Node: n.ID, Name: name, Type: r.typeOf(n.ID)})

	// Kotlin allows function overloads.
	if n.Kind != syntax.KindFunction {
		if _, dup := r.earlierSibling(n.ID, n.Kind, name); dup {
			b.Report(analysis.Diagnostic{
				Node:     n.ID,
				Code:     CodeRedeclaration,
				Severity: analysis.SeverityError,
				Message:  fmt.Sprintf("conflicting declarations: %s %s", n.Kind, name),
			})
		}
	}

	if r.isLocalProperty(n) && r.uses(n.ID, name) == 0 {
		b.Report(analysis.Diagnostic{
			Node:     n.ID,
			Code:     CodeUnusedVariable,
			Severity: analysis.SeverityWarning,
			Message:  fmt.Sprintf("variable '%s' is never used", name),
		})
	}
}

func (a *Analyzer) reference(r *resolver, b *analysis.Bindings, n syntax.Node) {
	decl, ok := r.resolve(n.ID, n.Text)
	if ok {
		b.Bind(analysis.Binding{Node: n.Parent, Type: r.typeOf(decl)})
		return
	}
	if !checked(n.Text) {
		return
	}
	b.Report(analysis.Diagnostic{
		Node:     n.Parent,
		Code:     CodeUnresolvedReference,
		Severity: analysis.SeverityError,
		Message:  "unresolved reference: " + n.Text,
	})
}
