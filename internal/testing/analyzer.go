// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package testing

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/syntax"
)

// FakeAnalyzer is a scripted analyzer. For every literal in the analyzed
// scope it reports a LITERAL warning whose message is the literal text and
// binds the literal; every named declaration is bound by name.
type FakeAnalyzer struct {
	mu     sync.Mutex
	fail   map[string]error
	panics map[string]any

	notReady atomic.Bool

	// Gate, when set, blocks every call until it is closed or the context
	// is done. Entered receives the scope of each blocked call.
	Gate    chan struct{}
	Entered chan syntax.NodeID
}

// NewFakeAnalyzer returns a ready analyzer with no scripted failures.
func NewFakeAnalyzer() *FakeAnalyzer {
	return &FakeAnalyzer{
		fail:   make(map[string]error),
		panics: make(map[string]any),
	}
}

// FailOn makes analysis of the declaration named name return err.
// A nil err clears the failure.
func (f *FakeAnalyzer) FailOn(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, name)
		return
	}
	f.fail[name] = err
}

// PanicOn makes analysis of the declaration named name panic with v.
func (f *FakeAnalyzer) PanicOn(name string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[name] = v
}

// SetReady toggles IndexReady.
func (f *FakeAnalyzer) SetReady(ready bool) { f.notReady.Store(!ready) }

func (f *FakeAnalyzer) IndexReady() bool { return !f.notReady.Load() }

func (f *FakeAnalyzer) AnalyzeScope(ctx context.Context, tree *syntax.Tree, scope syntax.NodeID) (analysis.Context, error) {
	if f.Gate != nil {
		if f.Entered != nil {
			f.Entered <- scope
		}
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := DeclName(tree, scope)
	f.mu.Lock()
	err, failing := f.fail[name]
	p, panicking := f.panics[name]
	f.mu.Unlock()
	if panicking {
		panic(p)
	}
	if failing {
		return nil, err
	}

	b := analysis.NewBindings()
	tree.Walk(scope, func(n syntax.Node) bool {
		switch {
		case n.Kind == syntax.KindLiteral:
			b.Bind(analysis.Binding{Node: n.ID, Type: "literal"})
			b.Report(analysis.Diagnostic{
				Node:     n.ID,
				Code:     "LITERAL",
				Severity: analysis.SeverityWarning,
				Message:  n.Text,
			})
		case n.Kind.IsDeclaration():
			if name := DeclName(tree, n.ID); name != "" {
				b.Bind(analysis.Binding{Node: n.ID, Name: name, Type: n.Kind.String()})
			}
		}
		return true
	})
	return b, nil
}
