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

import "github.com/kraklabs/inblock/pkg/syntax"

func analyzableKind(k syntax.Kind) bool {
	switch k {
	case syntax.KindFunction, syntax.KindProperty, syntax.KindClassInitializer, syntax.KindScriptInitializer,
		syntax.KindImport, syntax.KindPackage, syntax.KindTypeAlias,
		syntax.KindAnnotation, syntax.KindTypeParameter, syntax.KindParameter, syntax.KindSuperTypeCall:
		return true
	default:
		return false
	}
}

// AnalyzableParent resolves node to the scope whose analysis covers it: the
// topmost analyzable ancestor-or-self, adjusted for kinds that cannot be
// analyzed alone. It falls back to the topmost class and then the file.
// A stale node yields the zero ID.
func AnalyzableParent(tree *syntax.Tree, node syntax.NodeID) syntax.NodeID {
	if !tree.Valid(node) {
		return syntax.NodeID{}
	}
	root := tree.Root()
	if node == root {
		return root
	}

	chain := append([]syntax.NodeID{node}, tree.Ancestors(node)...)
	var top syntax.NodeID
	for _, n := range chain {
		if analyzableKind(tree.Kind(n)) {
			top = n
		}
	}

	if !top.IsZero() {
		switch tree.Kind(top) {
		case syntax.KindAnnotation, syntax.KindTypeParameter, syntax.KindParameter, syntax.KindSuperTypeCall:
			// Not analyzable by themselves: use the owning class or callable.
			for _, a := range tree.Ancestors(top) {
				switch tree.Kind(a) {
				case syntax.KindClass, syntax.KindFunction, syntax.KindProperty:
					return a
				}
			}
			top = syntax.NodeID{}
		case syntax.KindClassInitializer:
			for _, a := range tree.Ancestors(top) {
				if tree.Kind(a) == syntax.KindClass {
					return a
				}
			}
		default:
			return top
		}
	}

	var class syntax.NodeID
	for _, n := range chain {
		if tree.Kind(n) == syntax.KindClass {
			class = n
		}
	}
	if !class.IsZero() {
		return class
	}
	return root
}
