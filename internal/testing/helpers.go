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
	"sort"
	"testing"

	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/syntax"
)

// =============================================================================
// TREE BUILDERS
// =============================================================================
//
// The builders produce syntax specs shaped the way the Kotlin front end
// shapes them, without parsing source text.

func tok(text string) *syntax.Spec { return syntax.NewLeaf(syntax.KindToken, text) }

func ident(name string) *syntax.Spec { return syntax.NewLeaf(syntax.KindIdentifier, name) }

func typeRef(name string) *syntax.Spec {
	return syntax.NewNode(syntax.KindTypeRef, ident(name))
}

// File returns a file node holding decls.
func File(decls ...*syntax.Spec) *syntax.Spec {
	return syntax.NewNode(syntax.KindFile, decls...)
}

// Script returns a script file: File > Script > Block > stmts.
func Script(stmts ...*syntax.Spec) *syntax.Spec {
	return syntax.NewNode(syntax.KindFile,
		syntax.NewNode(syntax.KindScript,
			syntax.NewNode(syntax.KindBlock, stmts...),
		),
	)
}

// Fun returns `fun name() { stmts }`.
func Fun(name string, stmts ...*syntax.Spec) *syntax.Spec {
	return syntax.NewNode(syntax.KindFunction,
		tok("fun"),
		ident(name),
		Params(),
		BlockOf(stmts...),
	)
}

// ExprFun returns `fun name(): returnType = expr`. An empty returnType
// leaves the return type undeclared.
func ExprFun(name, returnType string, expr *syntax.Spec) *syntax.Spec {
	n := syntax.NewNode(syntax.KindFunction, tok("fun"), ident(name), Params())
	if returnType != "" {
		n.Children = append(n.Children, tok(":"), typeRef(returnType))
	}
	n.Children = append(n.Children, syntax.NewNode(syntax.KindExpressionBody, tok("="), expr))
	return n
}

// Params returns a parameter list of `name: Type` pairs.
func Params(pairs ...string) *syntax.Spec {
	n := syntax.NewNode(syntax.KindParameters, tok("("))
	for i := 0; i+1 < len(pairs); i += 2 {
		n.Children = append(n.Children, syntax.NewNode(syntax.KindParameter,
			ident(pairs[i]), tok(":"), typeRef(pairs[i+1])))
	}
	n.Children = append(n.Children, tok(")"))
	return n
}

// BlockOf returns `{ stmts }`.
func BlockOf(stmts ...*syntax.Spec) *syntax.Spec {
	return syntax.NewNode(syntax.KindBlock,
		tok("{"),
		syntax.NewNode(syntax.KindStatements, stmts...),
		tok("}"),
	)
}

// Val returns `val name: typ = init`. An empty typ omits the annotation and
// a nil init omits the initializer.
func Val(name, typ string, init *syntax.Spec) *syntax.Spec {
	v := syntax.NewNode(syntax.KindVariable, ident(name))
	if typ != "" {
		v.Children = append(v.Children, tok(":"), typeRef(typ))
	}
	n := syntax.NewNode(syntax.KindProperty, tok("val"), v)
	if init != nil {
		n.Children = append(n.Children, tok("="), syntax.NewNode(syntax.KindExpressionBody, init))
	}
	return n
}

// WithGetter appends `get() = expr` to a property.
func WithGetter(prop *syntax.Spec, expr *syntax.Spec) *syntax.Spec {
	prop.Children = append(prop.Children, syntax.NewNode(syntax.KindAccessor,
		tok("get"), tok("("), tok(")"),
		syntax.NewNode(syntax.KindExpressionBody, tok("="), expr),
	))
	return prop
}

// Class returns `class name : super { members }`. super may be nil.
func Class(name string, super *syntax.Spec, members ...*syntax.Spec) *syntax.Spec {
	n := syntax.NewNode(syntax.KindClass, tok("class"), ident(name))
	if super != nil {
		n.Children = append(n.Children, tok(":"), super)
	}
	body := syntax.NewNode(syntax.KindClassBody, tok("{"))
	body.Children = append(body.Children, members...)
	body.Children = append(body.Children, tok("}"))
	n.Children = append(n.Children, body)
	return n
}

// Init returns `init { stmts }`.
func Init(stmts ...*syntax.Spec) *syntax.Spec {
	return syntax.NewNode(syntax.KindClassInitializer, tok("init"), BlockOf(stmts...))
}

// SuperCall returns `typeName({ stmts })`, a super-type call with a lambda.
func SuperCall(typeName string, stmts ...*syntax.Spec) *syntax.Spec {
	return syntax.NewNode(syntax.KindSuperTypeCall,
		typeRef(typeName),
		tok("("),
		Lambda(stmts...),
		tok(")"),
	)
}

// Lambda returns `{ stmts }` as a lambda literal.
func Lambda(stmts ...*syntax.Spec) *syntax.Spec {
	return syntax.NewNode(syntax.KindLambda,
		tok("{"),
		syntax.NewNode(syntax.KindStatements, stmts...),
		tok("}"),
	)
}

// ScriptInit returns a script statement `callee { stmts }`.
func ScriptInit(callee string, stmts ...*syntax.Spec) *syntax.Spec {
	return syntax.NewNode(syntax.KindScriptInitializer,
		syntax.NewNode(syntax.KindCall, ident(callee), Lambda(stmts...)),
	)
}

// Call returns `name(args)`.
func Call(name string, args ...*syntax.Spec) *syntax.Spec {
	n := syntax.NewNode(syntax.KindCall, ident(name), tok("("))
	n.Children = append(n.Children, args...)
	n.Children = append(n.Children, tok(")"))
	return n
}

// Ref returns a name reference expression.
func Ref(name string) *syntax.Spec {
	return syntax.NewNode(syntax.KindExpression, ident(name))
}

// Lit returns a literal leaf.
func Lit(text string) *syntax.Spec {
	return syntax.NewLeaf(syntax.KindLiteral, text)
}

// Comment returns a comment leaf.
func Comment(text string) *syntax.Spec {
	return syntax.NewLeaf(syntax.KindComment, text)
}

// =============================================================================
// TREE QUERIES
// =============================================================================

// MustTree materializes spec or fails the test.
func MustTree(t *testing.T, spec *syntax.Spec) *syntax.Tree {
	t.Helper()
	tree, err := syntax.NewTree(spec)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	return tree
}

// MustSync syncs tree to spec or fails the test.
func MustSync(t *testing.T, tree *syntax.Tree, spec *syntax.Spec) syntax.Edit {
	t.Helper()
	edit, err := tree.Sync(spec)
	if err != nil {
		t.Fatalf("failed to sync tree: %v", err)
	}
	return edit
}

// DeclName returns the declared name of a node, looking through a Variable
// child for properties.
func DeclName(tree *syntax.Tree, id syntax.NodeID) string {
	if ident, ok := tree.FirstChild(id, syntax.KindIdentifier); ok {
		return tree.Text(ident)
	}
	if v, ok := tree.FirstChild(id, syntax.KindVariable); ok {
		if ident, ok := tree.FirstChild(v, syntax.KindIdentifier); ok {
			return tree.Text(ident)
		}
	}
	return ""
}

// Find returns the first node in pre-order matching kind and name, or the
// zero ID.
func Find(tree *syntax.Tree, kind syntax.Kind, name string) syntax.NodeID {
	var found syntax.NodeID
	tree.Walk(tree.Root(), func(n syntax.Node) bool {
		if !found.IsZero() {
			return false
		}
		if n.Kind == kind && DeclName(tree, n.ID) == name {
			found = n.ID
			return false
		}
		return true
	})
	return found
}

// Decl returns the declaration of kind named name or fails the test.
func Decl(t *testing.T, tree *syntax.Tree, kind syntax.Kind, name string) syntax.NodeID {
	t.Helper()
	id := Find(tree, kind, name)
	if id.IsZero() {
		t.Fatalf("no %s named %q", kind, name)
	}
	return id
}

// Literal returns the first literal leaf reading text or fails the test.
func Literal(t *testing.T, tree *syntax.Tree, text string) syntax.NodeID {
	t.Helper()
	var found syntax.NodeID
	tree.Walk(tree.Root(), func(n syntax.Node) bool {
		if found.IsZero() && n.Kind == syntax.KindLiteral && n.Text == text {
			found = n.ID
		}
		return found.IsZero()
	})
	if found.IsZero() {
		t.Fatalf("no literal %q", text)
	}
	return found
}

// SetLiteral rewrites the first literal reading from in spec. It reports
// whether one was found.
func SetLiteral(spec *syntax.Spec, from, to string) bool {
	lit := spec.Find(func(s *syntax.Spec) bool {
		return s.Kind == syntax.KindLiteral && s.Text == from
	})
	if lit == nil {
		return false
	}
	lit.Text = to
	return true
}

// Messages returns the sorted diagnostic messages of res.
func Messages(res *analysis.Result) []string {
	var out []string
	for _, d := range res.Context.Diagnostics() {
		out = append(out, d.Message)
	}
	sort.Strings(out)
	return out
}
