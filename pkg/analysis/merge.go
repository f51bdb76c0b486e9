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

import "github.com/kraklabs/inblock/pkg/syntax"

// =============================================================================
// CONTEXT MERGE
// =============================================================================
//
// Merge stacks a freshly analyzed scope over the cached file result. Parent
// diagnostics are kept only when their node still reaches the file root
// without passing through the element. Re-merging the same element replaces
// its layer instead of stacking a new one.

// MergeDepth returns the depth a merge of element over parent would produce.
func MergeDepth(parent Context, element syntax.NodeID) int {
	if pc, ok := parent.(*Composite); ok {
		if pc.element == element {
			return pc.depth
		}
		return pc.depth + 1
	}
	return 1
}

// Merge combines fresh, the result of analyzing element alone, with parent,
// the cached result of the whole file.
func Merge(tree *syntax.Tree, fresh, parent *Result, element syntax.NodeID) *Result {
	ctx := mergeContexts(tree, fresh.Context, parent.Context, element)
	if parent.IsError() {
		return InternalError(ctx, parent.Err)
	}
	return Success(ctx)
}

func mergeContexts(tree *syntax.Tree, fresh, parent Context, element syntax.NodeID) *Composite {
	depth := MergeDepth(parent, element)

	base := parent
	var parentDiags []Diagnostic
	if pc, ok := parent.(*Composite); ok && pc.element == element {
		base = pc.parent
		parentDiags = pc.parentDiagnostics
	} else {
		parentDiags = outsideDiagnostics(tree, parent.Diagnostics(), element)
	}

	freshDiags := fresh.Diagnostics()
	diags := make([]Diagnostic, 0, len(parentDiags)+len(freshDiags))
	diags = append(diags, parentDiags...)
	diags = append(diags, freshDiags...)

	return &Composite{
		depth:             depth,
		element:           element,
		children:          tree.Subtree(element),
		fresh:             fresh,
		parent:            base,
		parentDiagnostics: parentDiags,
		diagnostics:       diags,
	}
}

// outsideDiagnostics keeps the diagnostics whose node reaches the file root
// without passing through element. Diagnostics on removed nodes are dropped.
func outsideDiagnostics(tree *syntax.Tree, diags []Diagnostic, element syntax.NodeID) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if !tree.Valid(d.Node) {
			continue
		}
		if tree.IsAncestor(element, d.Node, false) {
			continue
		}
		out = append(out, d)
	}
	return out
}
