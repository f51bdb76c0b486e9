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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kt "github.com/kraklabs/inblock/internal/testing"
	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/modtrack"
	"github.com/kraklabs/inblock/pkg/syntax"
)

const file = "main.kt"

type fixture struct {
	t       *testing.T
	fake    *kt.FakeAnalyzer
	counter *analysis.Counting
	project *analysis.Project
	fc      *analysis.FileCache
	tree    *syntax.Tree
}

func newFixture(t *testing.T, spec *syntax.Spec, opts analysis.Options) *fixture {
	t.Helper()
	fake := kt.NewFakeAnalyzer()
	counter := analysis.NewCounting(fake)
	project := analysis.NewProject(counter, opts)
	tree := kt.MustTree(t, spec)
	return &fixture{
		t:       t,
		fake:    fake,
		counter: counter,
		project: project,
		fc:      project.Open(file, tree),
		tree:    tree,
	}
}

func (f *fixture) edit(mutate func(*syntax.Spec)) modtrack.Classification {
	f.t.Helper()
	next := f.tree.Spec()
	mutate(next)
	c, err := f.project.Record(file, kt.MustSync(f.t, f.tree, next))
	require.NoError(f.t, err)
	return c
}

func (f *fixture) setLiteral(from, to string) modtrack.Classification {
	f.t.Helper()
	return f.edit(func(s *syntax.Spec) {
		require.True(f.t, kt.SetLiteral(s, from, to))
	})
}

func (f *fixture) root() *analysis.Result {
	f.t.Helper()
	res, err := f.fc.Result(context.Background(), f.tree.Root())
	require.NoError(f.t, err)
	return res
}

func (f *fixture) at(literal string) *analysis.Result {
	f.t.Helper()
	res, err := f.fc.Result(context.Background(), kt.Literal(f.t, f.tree, literal))
	require.NoError(f.t, err)
	return res
}

func twoFunctions() *syntax.Spec {
	return kt.File(
		kt.Fun("foo", kt.Lit("1")),
		kt.Fun("bar", kt.Lit("2")),
	)
}

func TestFileCache_Idempotent(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})

	first := f.root()
	second := f.root()

	assert.Same(t, first, second)
	assert.Equal(t, kt.Messages(first), kt.Messages(second))
	assert.Equal(t, 1, f.counter.Total())

	// any element of the file is served by the root entry
	assert.Same(t, first, f.at("2"))
	assert.Equal(t, 1, f.counter.Total())
}

func TestFileCache_FooBarBazScenario(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	root := f.tree.Root()
	foo := kt.Decl(t, f.tree, syntax.KindFunction, "foo")

	res := f.root()
	assert.Equal(t, []string{"1", "2"}, kt.Messages(res))
	assert.Equal(t, 1, f.counter.Calls(root))

	barDiag := findDiag(t, res, "2")

	c := f.setLiteral("1", "10")
	require.Equal(t, modtrack.InBlock, c.Outcome)

	res = f.root()
	assert.Equal(t, []string{"10", "2"}, kt.Messages(res))
	assert.Equal(t, 2, f.counter.Total())
	assert.Equal(t, 1, f.counter.Calls(foo), "only foo is re-analyzed")
	assert.Equal(t, barDiag, findDiag(t, res, "2"), "bar diagnostics unchanged")
	assert.Equal(t, 1, res.Depth())

	c = f.edit(func(s *syntax.Spec) {
		s.Children = append(s.Children, kt.Fun("baz", kt.Lit("3")))
	})
	require.Equal(t, modtrack.OutOfBlock, c.Outcome)

	res = f.root()
	assert.Equal(t, []string{"10", "2", "3"}, kt.Messages(res))
	assert.Equal(t, 3, f.counter.Total())
	assert.Equal(t, 2, f.counter.Calls(root))
	assert.Equal(t, 0, res.Depth(), "full recomputation drops composite layers")
}

func TestFileCache_ReadYourWrites(t *testing.T) {
	f := newFixture(t, kt.File(
		kt.Fun("foo", kt.Lit("old"), kt.Lit("kept")),
		kt.Fun("bar", kt.Lit("2")),
	), analysis.Options{})
	f.root()

	f.edit(func(s *syntax.Spec) {
		body := s.FindDecl(syntax.KindFunction, "foo").At(3, 1)
		body.Children[0] = kt.Lit("new")
	})

	// querying an element inside the edited scope sees the edit
	res := f.at("new")
	assert.Equal(t, []string{"2", "kept", "new"}, kt.Messages(res))
	assert.NotContains(t, kt.Messages(res), "old")
}

func TestFileCache_MergeCorrectness(t *testing.T) {
	f := newFixture(t, kt.File(
		kt.Fun("a", kt.Lit("a1")),
		kt.Fun("b", kt.Lit("b1")),
		kt.Fun("c", kt.Lit("c1")),
	), analysis.Options{})
	f.root()

	c := f.edit(func(s *syntax.Spec) {
		kt.SetLiteral(s, "a1", "a2")
		kt.SetLiteral(s, "b1", "b2")
	})
	require.Equal(t, modtrack.InBlock, c.Outcome)
	require.Len(t, c.Scopes, 2)

	res := f.root()
	assert.Equal(t, []string{"a2", "b2", "c1"}, kt.Messages(res))
	assert.Equal(t, 3, f.counter.Total())
	assert.Equal(t, 1, f.counter.Calls(kt.Decl(t, f.tree, syntax.KindFunction, "a")))
	assert.Equal(t, 1, f.counter.Calls(kt.Decl(t, f.tree, syntax.KindFunction, "b")))
	assert.Equal(t, 2, res.Depth())

	// bindings route to the analysis that produced them
	for _, lit := range []string{"a2", "b2", "c1"} {
		b, ok := res.Context.Binding(kt.Literal(t, f.tree, lit))
		assert.True(t, ok, "binding for %s", lit)
		assert.Equal(t, "literal", b.Type)
	}
}

func TestFileCache_SameElementKeepsDepth(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	f.root()

	f.setLiteral("1", "10")
	assert.Equal(t, 1, f.root().Depth())

	f.setLiteral("10", "100")
	res := f.root()
	assert.Equal(t, 1, res.Depth())
	assert.Equal(t, []string{"100", "2"}, kt.Messages(res))

	f.setLiteral("2", "20")
	assert.Equal(t, 2, f.root().Depth())
}

func TestFileCache_DepthBoundRebuilds(t *testing.T) {
	f := newFixture(t, kt.File(
		kt.Fun("f1", kt.Lit("1")),
		kt.Fun("f2", kt.Lit("2")),
		kt.Fun("f3", kt.Lit("3")),
	), analysis.Options{MaxDepth: 2})
	root := f.tree.Root()
	f.root()

	f.setLiteral("1", "10")
	assert.Equal(t, 1, f.root().Depth())
	f.setLiteral("2", "20")
	assert.Equal(t, 2, f.root().Depth())

	f.setLiteral("3", "30")
	res := f.root()
	assert.Equal(t, 0, res.Depth())
	assert.Equal(t, []string{"10", "20", "30"}, kt.Messages(res))
	assert.Equal(t, 2, f.counter.Calls(root))
	assert.Equal(t, 0, f.counter.Calls(kt.Decl(t, f.tree, syntax.KindFunction, "f3")))
	assert.Equal(t, 4, f.counter.Total())

	st := f.fc.Stats()
	assert.Equal(t, 0, st.Pending)
	assert.True(t, st.RootCached)
}

func TestFileCache_OutOfBlockCallCounts(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})

	// sub-scope first, then the file
	f.at("1")
	f.root()
	assert.Equal(t, 2, f.counter.Total())
	assert.Equal(t, 2, f.fc.Stats().Entries)

	f.edit(func(s *syntax.Spec) {
		s.Children = append(s.Children, kt.Fun("baz"))
	})

	f.root()
	assert.Equal(t, 3, f.counter.Total(), "one full recomputation")
	f.at("1")
	f.at("2")
	assert.Equal(t, 3, f.counter.Total(), "sub-scopes served by the new root")
	assert.Equal(t, 1, f.fc.Stats().Entries)
}

func TestFileCache_PendingWithoutRootIsConsumed(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})

	f.setLiteral("1", "10")
	res := f.at("10")
	assert.Equal(t, []string{"10"}, kt.Messages(res))
	assert.Equal(t, 1, f.counter.Total())
	assert.Equal(t, 0, f.fc.Stats().Pending)
}

func TestFileCache_ErrorContainment(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	boom := errors.New("boom")
	f.fake.FailOn("foo", boom)

	fooRes := f.at("1")
	assert.Equal(t, analysis.StatusInternalError, fooRes.Status)
	assert.ErrorIs(t, fooRes.Err, boom)
	assert.Empty(t, fooRes.Context.Diagnostics())

	barRes := f.at("2")
	assert.Equal(t, analysis.StatusSuccess, barRes.Status)
	assert.Equal(t, []string{"2"}, kt.Messages(barRes))

	// the error result is cached
	assert.Same(t, fooRes, f.at("1"))
	assert.Equal(t, 2, f.counter.Total())
}

func TestFileCache_ErrorContainmentAfterMerge(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	f.root()

	f.fake.FailOn("foo", errors.New("boom"))
	f.setLiteral("1", "10")

	fooRes := f.at("10")
	assert.True(t, fooRes.IsError())

	rootRes := f.root()
	assert.Equal(t, analysis.StatusSuccess, rootRes.Status)
	assert.Equal(t, []string{"2"}, kt.Messages(rootRes))
	assert.Same(t, rootRes, f.at("2"))
}

func TestFileCache_PanicBecomesInternalError(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	f.fake.PanicOn("foo", "kaput")

	res := f.at("1")
	assert.Equal(t, analysis.StatusInternalError, res.Status)
	assert.ErrorIs(t, res.Err, analysis.ErrAnalyzerPanic)
	assert.Contains(t, res.Err.Error(), "kaput")
}

func TestFileCache_ParentErrorDominates(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	boom := errors.New("file failed")
	f.fake.FailOn("", boom) // the file root has no name

	res := f.root()
	require.True(t, res.IsError())

	f.fake.FailOn("", nil)
	f.setLiteral("1", "10")

	res = f.root()
	assert.Equal(t, analysis.StatusInternalError, res.Status)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, []string{"10"}, kt.Messages(res))
}

func TestFileCache_CancelledBeforeQuery(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.fc.Result(ctx, f.tree.Root())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.counter.Total())
}

func TestFileCache_CancelledDuringMerge(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	first := f.root()
	f.setLiteral("1", "10")

	f.fake.Gate = make(chan struct{})
	f.fake.Entered = make(chan syntax.NodeID)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := f.fc.Result(ctx, f.tree.Root())
		errc <- err
	}()
	<-f.fake.Entered
	cancel()

	err := <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.fc.Stats().Pending, "pending scope survives cancellation")

	f.fake.Gate = nil
	f.fake.Entered = nil
	res := f.root()
	assert.NotSame(t, first, res)
	assert.Equal(t, []string{"10", "2"}, kt.Messages(res))
}

func TestFileCache_IndexNotReady(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})

	f.fake.SetReady(false)
	res := f.root()
	assert.Equal(t, analysis.StatusEmpty, res.Status)
	assert.Empty(t, res.Context.Diagnostics())
	assert.Equal(t, 0, f.counter.Total())

	f.fake.SetReady(true)
	res = f.root()
	assert.Equal(t, analysis.StatusSuccess, res.Status)
	assert.Equal(t, 1, f.counter.Total())
}

func TestFileCache_IndexNotReadyDuringAnalysis(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	f.fake.FailOn("foo", analysis.ErrIndexNotReady)

	lit := kt.Literal(t, f.tree, "1")
	_, err := f.fc.Result(context.Background(), lit)
	assert.ErrorIs(t, err, analysis.ErrIndexNotReady)
	assert.Equal(t, 0, f.fc.Stats().Entries)

	f.fake.FailOn("foo", nil)
	res := f.at("1")
	assert.Equal(t, analysis.StatusSuccess, res.Status)
	assert.Equal(t, 2, f.counter.Total())
}

func TestFileCache_StaleElement(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	lit := kt.Literal(t, f.tree, "1")
	f.setLiteral("1", "10")

	_, err := f.fc.Result(context.Background(), lit)
	assert.ErrorIs(t, err, analysis.ErrStaleNode)
}

func TestFileCache_Invalidate(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	f.root()
	f.setLiteral("1", "10")

	f.fc.Invalidate()
	st := f.fc.Stats()
	assert.Equal(t, 0, st.Entries)
	assert.Equal(t, 0, st.Pending)

	f.root()
	assert.Equal(t, 2, f.counter.Calls(f.tree.Root()))
}

func TestFileCache_ConcurrentQueries(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	f.root()
	f.setLiteral("1", "10")

	const n = 8
	results := make([]*analysis.Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.fc.Result(context.Background(), f.tree.Root())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		assert.Same(t, results[0], res)
	}
	assert.Equal(t, 2, f.counter.Total(), "the pending scope is merged once")
}

func findDiag(t *testing.T, res *analysis.Result, message string) analysis.Diagnostic {
	t.Helper()
	for _, d := range res.Context.Diagnostics() {
		if d.Message == message {
			return d
		}
	}
	t.Fatalf("no diagnostic %q", message)
	return analysis.Diagnostic{}
}
