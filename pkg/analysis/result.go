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
	"sort"

	"github.com/kraklabs/inblock/pkg/syntax"
)

// Severity of a diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Diagnostic is a finding attached to the tree node it originates from.
type Diagnostic struct {
	Node     syntax.NodeID
	Code     string
	Severity Severity
	Message  string
}

// Binding associates a node with a resolved name and type.
type Binding struct {
	Node syntax.NodeID
	Name string
	Type string
}

// Context is a read-only binding context produced by analysis.
type Context interface {
	// Binding returns what analysis recorded for node.
	Binding(node syntax.NodeID) (Binding, bool)

	// Lookup resolves a declared name.
	Lookup(name string) (Binding, bool)

	// Keys lists every node with a binding.
	Keys() []syntax.NodeID

	// Diagnostics returns all diagnostics of the context.
	Diagnostics() []Diagnostic
}

// Bindings is the plain Context built by analyzers. It must not be modified
// once returned from an analyzer.
type Bindings struct {
	byNode map[syntax.NodeID]Binding
	byName map[string]Binding
	diags  []Diagnostic
}

// NewBindings returns an empty, writable binding set.
func NewBindings() *Bindings {
	return &Bindings{
		byNode: make(map[syntax.NodeID]Binding),
		byName: make(map[string]Binding),
	}
}

// Bind records b. The first binding of a name wins name lookups.
func (b *Bindings) Bind(binding Binding) {
	b.byNode[binding.Node] = binding
	if binding.Name == "" {
		return
	}
	if _, ok := b.byName[binding.Name]; !ok {
		b.byName[binding.Name] = binding
	}
}

// Report appends a diagnostic.
func (b *Bindings) Report(d Diagnostic) {
	b.diags = append(b.diags, d)
}

func (b *Bindings) Binding(node syntax.NodeID) (Binding, bool) {
	v, ok := b.byNode[node]
	return v, ok
}

func (b *Bindings) Lookup(name string) (Binding, bool) {
	v, ok := b.byName[name]
	return v, ok
}

func (b *Bindings) Keys() []syntax.NodeID {
	keys := make([]syntax.NodeID, 0, len(b.byNode))
	for k := range b.byNode {
		keys = append(keys, k)
	}
	sortIDs(keys)
	return keys
}

func (b *Bindings) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), b.diags...)
}

type emptyContext struct{}

func (emptyContext) Binding(syntax.NodeID) (Binding, bool) { return Binding{}, false }
func (emptyContext) Lookup(string) (Binding, bool)         { return Binding{}, false }
func (emptyContext) Keys() []syntax.NodeID                 { return nil }
func (emptyContext) Diagnostics() []Diagnostic             { return nil }

// Empty is the context with no bindings and no diagnostics.
var Empty Context = emptyContext{}

// Status of an analysis result.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusInternalError
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInternalError:
		return "internal_error"
	case StatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result is an immutable analysis result.
type Result struct {
	Context Context
	Status  Status

	// Err is the analyzer failure behind an internal error.
	Err error
}

// Success wraps ctx in a successful result.
func Success(ctx Context) *Result {
	if ctx == nil {
		ctx = Empty
	}
	return &Result{Context: ctx, Status: StatusSuccess}
}

// InternalError returns an error result over ctx.
func InternalError(ctx Context, err error) *Result {
	if ctx == nil {
		ctx = Empty
	}
	return &Result{Context: ctx, Status: StatusInternalError, Err: err}
}

// EmptyResult is returned while the analyzer is not ready.
func EmptyResult() *Result {
	return &Result{Context: Empty, Status: StatusEmpty}
}

// IsError reports whether the result carries an analyzer failure.
func (r *Result) IsError() bool {
	return r.Status == StatusInternalError
}

// Depth returns the number of composite layers stacked in the result.
func (r *Result) Depth() int {
	if c, ok := r.Context.(*Composite); ok {
		return c.Depth()
	}
	return 0
}

func sortIDs(ids []syntax.NodeID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Index != ids[j].Index {
			return ids[i].Index < ids[j].Index
		}
		return ids[i].Gen < ids[j].Gen
	})
}
