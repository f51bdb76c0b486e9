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
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kraklabs/inblock/pkg/syntax"
)

// =============================================================================
// NAME RESOLUTION
// =============================================================================
//
// A reference is resolved by walking up from it. Statement lists expose the
// declarations that precede the path; functions expose their parameters;
// class bodies and the file expose all their declarations and the file its
// imports.

// maxInferDepth bounds chains like `val a = b; val b = c; ...`.
const maxInferDepth = 8

// builtins are names resolved by the language, never reported.
var builtins = map[string]bool{
	"it": true, "this": true, "super": true, "field": true,
	"null": true, "true": true, "false": true,
}

type resolver struct {
	tree  *syntax.Tree
	types map[syntax.NodeID]string
}

func newResolver(tree *syntax.Tree) *resolver {
	return &resolver{tree: tree, types: make(map[syntax.NodeID]string)}
}

func declares(k syntax.Kind) bool {
	switch k {
	case syntax.KindFunction, syntax.KindProperty, syntax.KindParameter, syntax.KindClass:
		return true
	default:
		return false
	}
}

// checked reports whether an unresolved name is worth a diagnostic.
// Upper-case names are type or object references, which are resolved
// against the classpath rather than the file.
func checked(name string) bool {
	if name == "" || builtins[name] {
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	return unicode.IsLower(first) || first == '_'
}

func capitalized(name string) bool {
	first, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(first)
}

func (r *resolver) declName(id syntax.NodeID) string {
	t := r.tree
	if t.Kind(id) == syntax.KindProperty {
		if v, ok := t.FirstChild(id, syntax.KindVariable); ok {
			id = v
		}
	}
	if ident, ok := t.FirstChild(id, syntax.KindIdentifier); ok {
		return t.Text(ident)
	}
	return ""
}

// importedName returns the last identifier of an import directive.
func (r *resolver) importedName(id syntax.NodeID) string {
	name := ""
	for _, c := range r.tree.Children(id) {
		if r.tree.Kind(c) == syntax.KindIdentifier {
			name = r.tree.Text(c)
		}
	}
	return name
}

// isReference reports whether n is a bare name used as an expression.
func (r *resolver) isReference(n syntax.Node) bool {
	if n.Kind != syntax.KindIdentifier || r.tree.Kind(n.Parent) != syntax.KindExpression {
		return false
	}
	return len(r.tree.Children(n.Parent)) == 1
}

func (r *resolver) isLocalProperty(n syntax.Node) bool {
	return n.Kind == syntax.KindProperty && r.tree.Kind(n.Parent) == syntax.KindStatements
}

// orderedContainer reports whether declarations in id are visible only
// after their declaration.
func (r *resolver) orderedContainer(id syntax.NodeID) bool {
	switch r.tree.Kind(id) {
	case syntax.KindStatements:
		return true
	case syntax.KindBlock:
		return r.tree.Kind(r.tree.Parent(id)) == syntax.KindScript
	default:
		return false
	}
}

// resolve finds the declaration ref's name binds to.
func (r *resolver) resolve(ref syntax.NodeID, name string) (syntax.NodeID, bool) {
	t := r.tree
	child := ref
	for p := t.Parent(child); !p.IsZero(); child, p = p, t.Parent(p) {
		switch {
		case r.orderedContainer(p):
			children := t.Children(p)
			at := indexOf(children, child)
			for i := at - 1; i >= 0; i-- {
				if r.declares(children[i], name) {
					return children[i], true
				}
			}

		case t.Kind(p) == syntax.KindFunction:
			params, ok := t.FirstChild(p, syntax.KindParameters)
			if !ok {
				continue
			}
			for _, c := range t.Children(params) {
				if t.Kind(c) == syntax.KindParameter && r.declName(c) == name {
					return c, true
				}
			}

		case t.Kind(p) == syntax.KindClassBody, t.Kind(p) == syntax.KindFile:
			for _, c := range t.Children(p) {
				if r.declares(c, name) {
					return c, true
				}
				if t.Kind(c) == syntax.KindImport && r.importedName(c) == name {
					return c, true
				}
			}
		}
	}
	return syntax.NodeID{}, false
}

func (r *resolver) declares(id syntax.NodeID, name string) bool {
	return declares(r.tree.Kind(id)) && r.declName(id) == name
}

// earlierSibling finds a declaration of the same kind and name before id in
// its parent.
func (r *resolver) earlierSibling(id syntax.NodeID, kind syntax.Kind, name string) (syntax.NodeID, bool) {
	for _, c := range r.tree.Children(r.tree.Parent(id)) {
		if c == id {
			break
		}
		if r.tree.Kind(c) == kind && r.declName(c) == name {
			return c, true
		}
	}
	return syntax.NodeID{}, false
}

// uses counts the references that resolve to decl. Local declarations are
// only visible inside their statement list.
func (r *resolver) uses(decl syntax.NodeID, name string) int {
	n := 0
	r.tree.Walk(r.tree.Parent(decl), func(node syntax.Node) bool {
		if node.Kind == syntax.KindIdentifier && node.Text == name && r.isReference(node) {
			if got, ok := r.resolve(node.ID, name); ok && got == decl {
				n++
			}
		}
		return true
	})
	return n
}

// =============================================================================
// TYPES
// =============================================================================

func (r *resolver) typeOf(decl syntax.NodeID) string {
	return r.inferDecl(decl, 0)
}

func (r *resolver) inferDecl(decl syntax.NodeID, depth int) string {
	if t, ok := r.types[decl]; ok {
		return t
	}
	typ := "Any"
	t := r.tree
	switch t.Kind(decl) {
	case syntax.KindProperty:
		v, _ := t.FirstChild(decl, syntax.KindVariable)
		if ref, ok := t.FirstChild(v, syntax.KindTypeRef); ok {
			typ = t.Text(ref)
		} else if body, ok := t.FirstChild(decl, syntax.KindExpressionBody); ok {
			typ = r.inferBody(body, depth)
		}
	case syntax.KindParameter:
		if ref, ok := t.FirstChild(decl, syntax.KindTypeRef); ok {
			typ = t.Text(ref)
		}
	case syntax.KindFunction:
		if ref, ok := t.FirstChild(decl, syntax.KindTypeRef); ok {
			typ = t.Text(ref)
		} else if body, ok := t.FirstChild(decl, syntax.KindExpressionBody); ok {
			typ = r.inferBody(body, depth)
		} else {
			typ = "Unit"
		}
	case syntax.KindClass:
		typ = r.declName(decl)
	}
	r.types[decl] = typ
	return typ
}

// inferBody infers the type of the expression held by an expression body.
func (r *resolver) inferBody(body syntax.NodeID, depth int) string {
	if depth >= maxInferDepth {
		return "Any"
	}
	t := r.tree
	for _, c := range t.Children(body) {
		switch t.Kind(c) {
		case syntax.KindToken, syntax.KindComment, syntax.KindWhitespace:
			continue
		case syntax.KindLiteral:
			return literalType(t.Text(c))
		case syntax.KindLambda:
			return "Function"
		case syntax.KindExpression:
			children := t.Children(c)
			if len(children) == 1 && t.Kind(children[0]) == syntax.KindIdentifier {
				name := t.Text(children[0])
				if decl, ok := r.resolve(children[0], name); ok {
					return r.inferDecl(decl, depth+1)
				}
			}
			return "Any"
		case syntax.KindCall:
			callee, ok := t.FirstChild(c, syntax.KindIdentifier)
			if !ok {
				return "Any"
			}
			name := t.Text(callee)
			if decl, ok := r.resolve(callee, name); ok {
				return r.inferDecl(decl, depth+1)
			}
			if capitalized(name) {
				// constructor call
				return name
			}
			return "Any"
		default:
			return "Any"
		}
	}
	return "Any"
}

func literalType(text string) string {
	switch {
	case text == "":
		return "Any"
	case strings.HasPrefix(text, `"`):
		return "String"
	case strings.HasPrefix(text, "'"):
		return "Char"
	case text == "true" || text == "false":
		return "Boolean"
	case text == "null":
		return "Nothing?"
	case !unicode.IsDigit(rune(text[0])):
		return "Any"
	case strings.HasSuffix(text, "L"):
		return "Long"
	case strings.HasSuffix(text, "f") || strings.HasSuffix(text, "F"):
		return "Float"
	case strings.ContainsAny(text, ".eE") && !strings.HasPrefix(text, "0x"):
		return "Double"
	default:
		return "Int"
	}
}

func indexOf(ids []syntax.NodeID, id syntax.NodeID) int {
	for i, c := range ids {
		if c == id {
			return i
		}
	}
	return -1
}
