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

package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kt "github.com/kraklabs/inblock/internal/testing"
	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/syntax"
)

func analyzeScope(t *testing.T, tree *syntax.Tree, scope syntax.NodeID) *analysis.Result {
	t.Helper()
	ctx, err := kt.NewFakeAnalyzer().AnalyzeScope(context.Background(), tree, scope)
	require.NoError(t, err)
	return analysis.Success(ctx)
}

func TestMerge_Routing(t *testing.T) {
	tree := kt.MustTree(t, twoFunctions())
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	parent := analyzeScope(t, tree, tree.Root())
	fresh := analyzeScope(t, tree, foo)

	merged := analysis.Merge(tree, fresh, parent, foo)
	require.Equal(t, analysis.StatusSuccess, merged.Status)
	comp, ok := merged.Context.(*analysis.Composite)
	require.True(t, ok)

	assert.Equal(t, foo, comp.Element())
	assert.Equal(t, 1, comp.Depth())
	assert.True(t, comp.Routes(kt.Literal(t, tree, "1")))
	assert.False(t, comp.Routes(foo), "the element itself belongs to the parent")
	assert.False(t, comp.Routes(kt.Literal(t, tree, "2")))

	b, ok := comp.Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, foo, b.Node)
	_, ok = comp.Lookup("bar")
	assert.True(t, ok, "names missing from the fresh context fall through")

	assert.ElementsMatch(t, parent.Context.Keys(), comp.Keys())
	assert.Equal(t, []string{"1", "2"}, kt.Messages(merged))
	assert.Equal(t, []string{"2"}, messagesOf(comp.ParentDiagnostics()))
}

func TestMerge_SameElementReplacesLayer(t *testing.T) {
	spec := twoFunctions()
	tree := kt.MustTree(t, spec)
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	root := analyzeScope(t, tree, tree.Root())

	first := analysis.Merge(tree, analyzeScope(t, tree, foo), root, foo)

	next := tree.Spec()
	require.True(t, kt.SetLiteral(next, "1", "10"))
	kt.MustSync(t, tree, next)

	second := analysis.Merge(tree, analyzeScope(t, tree, foo), first, foo)
	comp := second.Context.(*analysis.Composite)

	assert.Equal(t, 1, comp.Depth())
	assert.Same(t, root.Context, comp.Parent())
	assert.Equal(t, []string{"10", "2"}, kt.Messages(second))
}

func TestMerge_DifferentElementStacks(t *testing.T) {
	tree := kt.MustTree(t, twoFunctions())
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	bar := kt.Decl(t, tree, syntax.KindFunction, "bar")
	root := analyzeScope(t, tree, tree.Root())

	assert.Equal(t, 1, analysis.MergeDepth(root.Context, foo))

	first := analysis.Merge(tree, analyzeScope(t, tree, foo), root, foo)
	assert.Equal(t, 1, analysis.MergeDepth(first.Context, foo))
	assert.Equal(t, 2, analysis.MergeDepth(first.Context, bar))

	second := analysis.Merge(tree, analyzeScope(t, tree, bar), first, bar)
	assert.Equal(t, 2, second.Depth())
	assert.Same(t, first.Context, second.Context.(*analysis.Composite).Parent())
	assert.Equal(t, []string{"1", "2"}, kt.Messages(second))
}

func TestMerge_DropsDiagnosticsOfRemovedNodes(t *testing.T) {
	tree := kt.MustTree(t, twoFunctions())
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	root := analyzeScope(t, tree, tree.Root())

	// bar's literal is replaced but bar is not re-analyzed
	next := tree.Spec()
	require.True(t, kt.SetLiteral(next, "2", "20"))
	kt.MustSync(t, tree, next)

	merged := analysis.Merge(tree, analyzeScope(t, tree, foo), root, foo)
	assert.Equal(t, []string{"1"}, kt.Messages(merged))
}

func TestMerge_ParentErrorDominates(t *testing.T) {
	tree := kt.MustTree(t, twoFunctions())
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	boom := errors.New("boom")
	parent := analysis.InternalError(analysis.Empty, boom)

	merged := analysis.Merge(tree, analyzeScope(t, tree, foo), parent, foo)
	assert.True(t, merged.IsError())
	assert.ErrorIs(t, merged.Err, boom)
	assert.Equal(t, []string{"1"}, kt.Messages(merged))
}

func TestMerge_FreshErrorKeepsParent(t *testing.T) {
	tree := kt.MustTree(t, twoFunctions())
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	root := analyzeScope(t, tree, tree.Root())
	fresh := analysis.InternalError(analysis.Empty, errors.New("boom"))

	merged := analysis.Merge(tree, fresh, root, foo)
	assert.Equal(t, analysis.StatusSuccess, merged.Status)
	assert.Equal(t, []string{"2"}, kt.Messages(merged))
	_, ok := merged.Context.Binding(kt.Literal(t, tree, "1"))
	assert.False(t, ok, "nodes inside the element route to the failed analysis")
}

func TestBindings_FirstNameWins(t *testing.T) {
	tree := kt.MustTree(t, twoFunctions())
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	bar := kt.Decl(t, tree, syntax.KindFunction, "bar")

	b := analysis.NewBindings()
	b.Bind(analysis.Binding{Node: foo, Name: "x"})
	b.Bind(analysis.Binding{Node: bar, Name: "x"})

	got, ok := b.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, foo, got.Node)
	assert.Len(t, b.Keys(), 2)
}

func TestResult_Helpers(t *testing.T) {
	assert.Equal(t, analysis.StatusSuccess, analysis.Success(nil).Status)
	assert.Equal(t, analysis.Empty, analysis.Success(nil).Context)
	assert.Equal(t, "empty", analysis.EmptyResult().Status.String())
	assert.Equal(t, "internal_error", analysis.InternalError(nil, errors.New("x")).Status.String())
	assert.Equal(t, 0, analysis.EmptyResult().Depth())
	assert.Equal(t, "warning", analysis.SeverityWarning.String())
}

func TestCounting(t *testing.T) {
	tree := kt.MustTree(t, twoFunctions())
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	fake := kt.NewFakeAnalyzer()
	c := analysis.NewCounting(fake)

	for i := 0; i < 3; i++ {
		_, err := c.AnalyzeScope(context.Background(), tree, foo)
		require.NoError(t, err)
	}
	_, err := c.AnalyzeScope(context.Background(), tree, tree.Root())
	require.NoError(t, err)

	assert.Equal(t, 4, c.Total())
	assert.Equal(t, 3, c.Calls(foo))

	fake.SetReady(false)
	assert.False(t, c.IndexReady())

	c.Reset()
	assert.Equal(t, 0, c.Total())
	assert.Equal(t, 0, c.Calls(foo))

	plain := analysis.NewCounting(analysis.AnalyzerFunc(
		func(context.Context, *syntax.Tree, syntax.NodeID) (analysis.Context, error) {
			return analysis.Empty, nil
		}))
	assert.True(t, plain.IndexReady())
}

func messagesOf(diags []analysis.Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Message)
	}
	return out
}
