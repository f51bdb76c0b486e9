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

package modtrack

import (
	"github.com/kraklabs/inblock/pkg/syntax"
)

// =============================================================================
// CHANGE CLASSIFICATION
// =============================================================================
//
// An edit is in-block when every touched node sits inside the body of a
// non-local block-bearing declaration (function, property, class initializer,
// script initializer). Anything else changes declaration structure and is
// out-of-block.

// Outcome is the result of classifying one edit.
type Outcome uint8

const (
	// Ignored edits touched only whitespace or comments.
	Ignored Outcome = iota
	// InBlock edits are confined to recorded scopes.
	InBlock
	// OutOfBlock edits invalidate the whole file.
	OutOfBlock
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case InBlock:
		return "in_block"
	case OutOfBlock:
		return "out_of_block"
	default:
		return "unknown"
	}
}

// Scope is one in-block modification target.
type Scope struct {
	// Decl is the analyzable declaration recorded as pending.
	Decl syntax.NodeID

	// Body is the code block that contains the change.
	Body syntax.NodeID

	// Kind is the kind of Decl.
	Kind syntax.Kind
}

// Classification is what Classify decided for an edit.
type Classification struct {
	Outcome Outcome
	Scopes  []Scope

	// Reason explains an out-of-block outcome.
	Reason string
}

// Reasons reported for out-of-block classifications.
const (
	ReasonWholeFile     = "whole_file"
	ReasonNoBlock       = "outside_code_block"
	ReasonLocal         = "local_declaration"
	ReasonNotRecordable = "not_recordable"
	ReasonNested        = "nested_scopes"
	ReasonInvalidated   = "invalidated"
)

func outOfBlock(reason string) Classification {
	return Classification{Outcome: OutOfBlock, Reason: reason}
}

// blockDeclaration reports the kinds whose bodies may be re-analyzed alone.
func blockDeclaration(k syntax.Kind) bool {
	switch k {
	case syntax.KindFunction, syntax.KindProperty, syntax.KindClassInitializer, syntax.KindScriptInitializer:
		return true
	default:
		return false
	}
}

// Classify decides whether edit is confined to code blocks of tree. It has
// no side effects; Tracker.Record applies the outcome.
func Classify(tree *syntax.Tree, edit syntax.Edit) Classification {
	if edit.Formatting {
		return Classification{Outcome: Ignored}
	}
	if len(edit.Touched) == 0 {
		return outOfBlock(ReasonWholeFile)
	}

	var scopes []Scope
	seen := make(map[syntax.NodeID]bool)
	for _, node := range edit.Touched {
		body, reason := InsideCodeBlockScope(tree, node)
		if body.IsZero() {
			return outOfBlock(reason)
		}
		decl, ok := recordedDeclaration(tree, node)
		if !ok {
			return outOfBlock(ReasonNotRecordable)
		}
		if seen[decl] {
			continue
		}
		seen[decl] = true
		scopes = append(scopes, Scope{Decl: decl, Body: body, Kind: tree.Kind(decl)})
	}

	for i := range scopes {
		for j := range scopes {
			if i != j && tree.IsAncestor(scopes[i].Decl, scopes[j].Decl, true) {
				return outOfBlock(ReasonNested)
			}
		}
	}
	return Classification{Outcome: InBlock, Scopes: scopes}
}

// InsideCodeBlockScope returns the code block of a non-local block-bearing
// declaration that contains node. A zero ID means the change at node is
// out-of-block; the string names why.
func InsideCodeBlockScope(tree *syntax.Tree, node syntax.NodeID) (syntax.NodeID, string) {
	if !tree.Valid(node) {
		return syntax.NodeID{}, ReasonNoBlock
	}
	ancestors := tree.Ancestors(node)

	// Lambdas passed to a super-type constructor call are scoped to the call.
	if lambda, ok := topmost(tree, ancestors, syntax.KindLambda); ok {
		if entry, ok := topmost(tree, tree.Ancestors(lambda), syntax.KindSuperTypeCall); ok {
			return entry, ""
		}
	}

	var decl syntax.NodeID
	for _, a := range ancestors {
		if blockDeclaration(tree.Kind(a)) {
			decl = a
		}
	}
	if decl.IsZero() {
		return syntax.NodeID{}, ReasonNoBlock
	}
	if isLocal(tree, decl) {
		return syntax.NodeID{}, ReasonLocal
	}

	contains := func(body syntax.NodeID) bool {
		return !body.IsZero() && tree.IsAncestor(body, node, false)
	}

	switch tree.Kind(decl) {
	case syntax.KindFunction:
		if block, ok := tree.FirstChild(decl, syntax.KindBlock); ok {
			if contains(block) {
				return block, ""
			}
		} else if _, typed := tree.FirstChild(decl, syntax.KindTypeRef); typed {
			if expr, ok := tree.FirstChild(decl, syntax.KindExpressionBody); ok && contains(expr) {
				return expr, ""
			}
		}

	case syntax.KindProperty:
		if !hasDeclaredType(tree, decl) {
			break
		}
		for _, acc := range tree.Children(decl) {
			if tree.Kind(acc) != syntax.KindAccessor {
				continue
			}
			body := accessorBody(tree, acc)
			if contains(body) || (node == acc && !body.IsZero()) {
				return body, ""
			}
		}
		if init, ok := tree.FirstChild(decl, syntax.KindExpressionBody); ok && contains(init) {
			return init, ""
		}

	case syntax.KindScriptInitializer:
		if call, ok := tree.FirstChild(decl, syntax.KindCall); ok {
			if lambda := lastChild(tree, call, syntax.KindLambda); contains(lambda) {
				return lambda, ""
			}
		}

	case syntax.KindClassInitializer:
		return decl, ""
	}
	return syntax.NodeID{}, ReasonNoBlock
}

// recordedDeclaration finds the nearest ancestor that matches one of the
// fixed shapes reachable from the file root.
func recordedDeclaration(tree *syntax.Tree, node syntax.NodeID) (syntax.NodeID, bool) {
	for _, a := range tree.Ancestors(node) {
		kind := tree.Kind(a)
		if kind == syntax.KindFile {
			break
		}
		up := func(n int) syntax.Kind {
			cur := a
			for i := 0; i < n; i++ {
				cur = tree.Parent(cur)
			}
			return tree.Kind(cur)
		}

		var ok bool
		switch kind {
		case syntax.KindFunction:
			// top-level, member of a top-level class, or script-level
			ok = up(1) == syntax.KindFile || up(3) == syntax.KindFile
		case syntax.KindClass:
			ok = up(1) == syntax.KindFile
		case syntax.KindProperty:
			ok = up(1) == syntax.KindFile || (up(2) == syntax.KindClass && up(3) == syntax.KindFile)
		case syntax.KindScriptInitializer:
			ok = up(3) == syntax.KindFile
		}
		if ok {
			return a, true
		}
	}
	return syntax.NodeID{}, false
}

// isLocal reports whether decl sits inside another declaration's code.
// Statements of a script block are not local.
func isLocal(tree *syntax.Tree, decl syntax.NodeID) bool {
	for _, a := range tree.Ancestors(decl) {
		switch tree.Kind(a) {
		case syntax.KindBlock:
			if tree.Kind(tree.Parent(a)) != syntax.KindScript {
				return true
			}
		case syntax.KindExpressionBody, syntax.KindLambda, syntax.KindAccessor, syntax.KindCall:
			return true
		}
	}
	return false
}

func hasDeclaredType(tree *syntax.Tree, decl syntax.NodeID) bool {
	if _, ok := tree.FirstChild(decl, syntax.KindTypeRef); ok {
		return true
	}
	if v, ok := tree.FirstChild(decl, syntax.KindVariable); ok {
		_, ok = tree.FirstChild(v, syntax.KindTypeRef)
		return ok
	}
	return false
}

func accessorBody(tree *syntax.Tree, acc syntax.NodeID) syntax.NodeID {
	if expr, ok := tree.FirstChild(acc, syntax.KindExpressionBody); ok {
		return expr
	}
	if block, ok := tree.FirstChild(acc, syntax.KindBlock); ok {
		return block
	}
	return syntax.NodeID{}
}

// topmost returns the farthest node of kind in ancestors (nearest first).
func topmost(tree *syntax.Tree, ancestors []syntax.NodeID, kind syntax.Kind) (syntax.NodeID, bool) {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if tree.Kind(ancestors[i]) == kind {
			return ancestors[i], true
		}
	}
	return syntax.NodeID{}, false
}

func lastChild(tree *syntax.Tree, id syntax.NodeID, kind syntax.Kind) syntax.NodeID {
	children := tree.Children(id)
	for i := len(children) - 1; i >= 0; i-- {
		if tree.Kind(children[i]) == kind {
			return children[i]
		}
	}
	return syntax.NodeID{}
}
