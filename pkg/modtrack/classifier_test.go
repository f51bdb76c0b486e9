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

package modtrack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kt "github.com/kraklabs/inblock/internal/testing"
	"github.com/kraklabs/inblock/pkg/modtrack"
	"github.com/kraklabs/inblock/pkg/syntax"
)

// fixture is a file exercising every block-bearing shape.
func fixture() *syntax.Spec {
	return kt.File(
		kt.Fun("foo", kt.Val("a", "", kt.Lit("1"))),
		kt.Fun("bar", kt.Val("b", "", kt.Lit("2"))),
		kt.ExprFun("typed", "Int", kt.Lit("3")),
		kt.ExprFun("untyped", "", kt.Lit("4")),
		kt.Val("top", "Int", kt.Lit("5")),
		kt.Val("inferred", "", kt.Lit("6")),
		kt.WithGetter(kt.Val("computed", "Int", nil), kt.Lit("7")),
		kt.Class("C", kt.SuperCall("Base", kt.Lit("8")),
			kt.Fun("member", kt.Lit("9")),
			kt.Init(kt.Lit("10")),
			kt.Class("Inner", nil, kt.Fun("deep", kt.Lit("11"))),
		),
		kt.Fun("outer", kt.Fun("local", kt.Lit("12"))),
	)
}

func scriptFixture() *syntax.Spec {
	return kt.Script(
		kt.ScriptInit("plugins", kt.Lit("1")),
		kt.Fun("helper", kt.Lit("2")),
	)
}

// editLiteral syncs tree to base with one literal rewritten.
func editLiteral(t *testing.T, tree *syntax.Tree, base *syntax.Spec, from string) syntax.Edit {
	t.Helper()
	next := base.Clone()
	require.True(t, kt.SetLiteral(next, from, from+"0"))
	return kt.MustSync(t, tree, next)
}

func TestClassify_LiteralEdits(t *testing.T) {
	tests := []struct {
		name     string
		script   bool
		literal  string
		outcome  modtrack.Outcome
		declKind syntax.Kind
		declName string
		bodyKind syntax.Kind
	}{
		{"function block body", false, "1", modtrack.InBlock, syntax.KindFunction, "foo", syntax.KindBlock},
		{"typed expression body", false, "3", modtrack.InBlock, syntax.KindFunction, "typed", syntax.KindExpressionBody},
		{"untyped expression body", false, "4", modtrack.OutOfBlock, 0, "", 0},
		{"typed top-level property", false, "5", modtrack.InBlock, syntax.KindProperty, "top", syntax.KindExpressionBody},
		{"inferred property", false, "6", modtrack.OutOfBlock, 0, "", 0},
		{"getter body", false, "7", modtrack.InBlock, syntax.KindProperty, "computed", syntax.KindExpressionBody},
		{"super-type call lambda", false, "8", modtrack.InBlock, syntax.KindClass, "C", syntax.KindSuperTypeCall},
		{"member function", false, "9", modtrack.InBlock, syntax.KindFunction, "member", syntax.KindBlock},
		{"class initializer", false, "10", modtrack.InBlock, syntax.KindClass, "C", syntax.KindClassInitializer},
		{"nested class member", false, "11", modtrack.InBlock, syntax.KindClass, "C", syntax.KindBlock},
		{"local function", false, "12", modtrack.InBlock, syntax.KindFunction, "outer", syntax.KindBlock},
		{"script initializer lambda", true, "1", modtrack.InBlock, syntax.KindScriptInitializer, "", syntax.KindLambda},
		{"script-level function", true, "2", modtrack.InBlock, syntax.KindFunction, "helper", syntax.KindBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := fixture()
			if tt.script {
				base = scriptFixture()
			}
			tree := kt.MustTree(t, base)

			c := modtrack.Classify(tree, editLiteral(t, tree, base, tt.literal))
			require.Equal(t, tt.outcome, c.Outcome, "reason: %s", c.Reason)
			if tt.outcome != modtrack.InBlock {
				assert.NotEmpty(t, c.Reason)
				return
			}

			require.Len(t, c.Scopes, 1)
			s := c.Scopes[0]
			assert.Equal(t, tt.declKind, s.Kind)
			assert.Equal(t, tt.declKind, tree.Kind(s.Decl))
			if tt.declName != "" {
				assert.Equal(t, tt.declName, kt.DeclName(tree, s.Decl))
			}
			assert.Equal(t, tt.bodyKind, tree.Kind(s.Body))
		})
	}
}

func TestClassify_StructuralEdits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*syntax.Spec)
		reason string
	}{
		{
			name: "new top-level function",
			mutate: func(s *syntax.Spec) {
				s.Children = append(s.Children, kt.Fun("baz"))
			},
			reason: modtrack.ReasonNoBlock,
		},
		{
			name: "function renamed",
			mutate: func(s *syntax.Spec) {
				s.FindDecl(syntax.KindFunction, "foo").Children[1].Text = "foo2"
			},
			reason: modtrack.ReasonNoBlock,
		},
		{
			name: "parameter added",
			mutate: func(s *syntax.Spec) {
				fn := s.FindDecl(syntax.KindFunction, "bar")
				fn.Children[2] = kt.Params("x", "Int")
			},
			reason: modtrack.ReasonNoBlock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := fixture()
			tree := kt.MustTree(t, base)
			next := base.Clone()
			tt.mutate(next)

			c := modtrack.Classify(tree, kt.MustSync(t, tree, next))
			assert.Equal(t, modtrack.OutOfBlock, c.Outcome)
			assert.Equal(t, tt.reason, c.Reason)
		})
	}
}

func TestClassify_FormattingIgnored(t *testing.T) {
	base := fixture()
	tree := kt.MustTree(t, base)
	next := base.Clone()
	stmts := next.FindDecl(syntax.KindFunction, "foo").At(3, 1)
	stmts.Children = append(stmts.Children, kt.Comment("// todo"))

	edit := kt.MustSync(t, tree, next)
	require.True(t, edit.Formatting)
	assert.Equal(t, modtrack.Ignored, modtrack.Classify(tree, edit).Outcome)
}

func TestClassify_WholeFile(t *testing.T) {
	tree := kt.MustTree(t, fixture())
	edit, err := tree.Reset(fixture())
	require.NoError(t, err)

	c := modtrack.Classify(tree, edit)
	assert.Equal(t, modtrack.OutOfBlock, c.Outcome)
	assert.Equal(t, modtrack.ReasonWholeFile, c.Reason)
}

func TestClassify_TwoDisjointScopes(t *testing.T) {
	base := fixture()
	tree := kt.MustTree(t, base)
	next := base.Clone()
	kt.SetLiteral(next, "1", "100")
	kt.SetLiteral(next, "2", "200")

	c := modtrack.Classify(tree, kt.MustSync(t, tree, next))
	require.Equal(t, modtrack.InBlock, c.Outcome)
	require.Len(t, c.Scopes, 2)
	names := []string{kt.DeclName(tree, c.Scopes[0].Decl), kt.DeclName(tree, c.Scopes[1].Decl)}
	assert.ElementsMatch(t, []string{"foo", "bar"}, names)
}

func TestClassify_LocalDeclaration(t *testing.T) {
	// class D : Base(run(object { fun f() { 1 } }))
	anon := kt.Class("", nil, kt.Fun("f", kt.Lit("1")))
	super := syntax.NewNode(syntax.KindSuperTypeCall,
		syntax.NewNode(syntax.KindTypeRef, syntax.NewLeaf(syntax.KindIdentifier, "Base")),
		kt.Call("run", anon),
	)
	base := kt.File(kt.Class("D", super))
	tree := kt.MustTree(t, base)

	c := modtrack.Classify(tree, editLiteral(t, tree, base, "1"))
	assert.Equal(t, modtrack.OutOfBlock, c.Outcome)
	assert.Equal(t, modtrack.ReasonLocal, c.Reason)
}

func TestInsideCodeBlockScope_AccessorNode(t *testing.T) {
	tree := kt.MustTree(t, fixture())
	prop := kt.Decl(t, tree, syntax.KindProperty, "computed")
	acc, ok := tree.FirstChild(prop, syntax.KindAccessor)
	require.True(t, ok)

	body, reason := modtrack.InsideCodeBlockScope(tree, acc)
	assert.Empty(t, reason)
	assert.Equal(t, syntax.KindExpressionBody, tree.Kind(body))
	assert.Equal(t, acc, tree.Parent(body))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ignored", modtrack.Ignored.String())
	assert.Equal(t, "in_block", modtrack.InBlock.String())
	assert.Equal(t, "out_of_block", modtrack.OutOfBlock.String())
}
