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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kt "github.com/kraklabs/inblock/internal/testing"
	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/syntax"
)

func TestProject_UnknownFile(t *testing.T) {
	p := analysis.NewProject(kt.NewFakeAnalyzer(), analysis.Options{})

	_, err := p.Result(context.Background(), "missing.kt", syntax.NodeID{})
	assert.ErrorIs(t, err, analysis.ErrUnknownFile)
	_, err = p.Record("missing.kt", syntax.Edit{})
	assert.ErrorIs(t, err, analysis.ErrUnknownFile)
	assert.ErrorIs(t, p.InvalidateAll("missing.kt"), analysis.ErrUnknownFile)
}

func TestProject_OpenCloseFiles(t *testing.T) {
	p := analysis.NewProject(kt.NewFakeAnalyzer(), analysis.Options{})
	assert.NotEmpty(t, p.ID())

	p.Open("b.kt", kt.MustTree(t, twoFunctions()))
	p.Open("a.kt", kt.MustTree(t, twoFunctions()))
	assert.Equal(t, []string{"a.kt", "b.kt"}, p.Files())

	fc, ok := p.File("a.kt")
	require.True(t, ok)
	assert.Equal(t, "a.kt", fc.File())

	p.Close("a.kt")
	_, ok = p.File("a.kt")
	assert.False(t, ok)
	assert.Equal(t, []string{"b.kt"}, p.Files())
}

func TestProject_ReopenForgetsPending(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	f.root()
	f.setLiteral("1", "10")
	require.Len(t, f.project.Tracker().Pending(file), 1)

	tree := kt.MustTree(t, twoFunctions())
	fc := f.project.Open(file, tree)
	assert.Empty(t, f.project.Tracker().Pending(file))
	assert.Equal(t, 0, fc.Stats().Entries)
}

func TestProject_InvalidateAll(t *testing.T) {
	f := newFixture(t, twoFunctions(), analysis.Options{})
	f.root()

	require.NoError(t, f.project.InvalidateAll(file))
	assert.Equal(t, 0, f.fc.Stats().Entries)

	res, err := f.project.Result(context.Background(), file, f.tree.Root())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, kt.Messages(res))
	assert.Equal(t, 2, f.counter.Calls(f.tree.Root()))
}

func TestProject_InvalidateProject(t *testing.T) {
	counter := analysis.NewCounting(kt.NewFakeAnalyzer())
	p := analysis.NewProject(counter, analysis.Options{})
	a := p.Open("a.kt", kt.MustTree(t, twoFunctions()))
	b := p.Open("b.kt", kt.MustTree(t, twoFunctions()))

	for _, fc := range []*analysis.FileCache{a, b} {
		_, err := fc.Result(context.Background(), fc.Tree().Root())
		require.NoError(t, err)
	}
	p.InvalidateProject()

	assert.Equal(t, 0, a.Stats().Entries)
	assert.Equal(t, 0, b.Stats().Entries)
	assert.Equal(t, uint64(1), a.Stats().OutOfBlock)
}

func TestProject_CheckAll(t *testing.T) {
	counter := analysis.NewCounting(kt.NewFakeAnalyzer())
	p := analysis.NewProject(counter, analysis.Options{})

	var files []string
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("f%02d.kt", i)
		p.Open(name, kt.MustTree(t, kt.File(kt.Fun("foo", kt.Lit(name)))))
		files = append(files, name)
	}

	var mu sync.Mutex
	got := make(map[string][]string)
	err := p.CheckAll(context.Background(), files, 3, func(file string, res *analysis.Result) error {
		mu.Lock()
		defer mu.Unlock()
		got[file] = kt.Messages(res)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, []string{"f03.kt"}, got["f03.kt"])
	assert.Equal(t, 10, counter.Total())
}

func TestProject_CheckAllStopsOnError(t *testing.T) {
	p := analysis.NewProject(kt.NewFakeAnalyzer(), analysis.Options{})
	p.Open("a.kt", kt.MustTree(t, twoFunctions()))

	stop := errors.New("stop")
	err := p.CheckAll(context.Background(), []string{"a.kt", "missing.kt"}, 1, func(string, *analysis.Result) error {
		return stop
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stop) || errors.Is(err, analysis.ErrUnknownFile))
}

func TestProject_FilesDoNotBlockEachOther(t *testing.T) {
	fake := kt.NewFakeAnalyzer()
	p := analysis.NewProject(fake, analysis.Options{})
	slow := p.Open("slow.kt", kt.MustTree(t, twoFunctions()))
	fast := p.Open("fast.kt", kt.MustTree(t, twoFunctions()))

	fake.Gate = make(chan struct{})
	fake.Entered = make(chan syntax.NodeID, 1)

	done := make(chan error, 1)
	go func() {
		_, err := slow.Result(context.Background(), slow.Tree().Root())
		done <- err
	}()
	<-fake.Entered

	// the gate blocks every call; the other file must still reach the
	// analyzer instead of waiting on the slow file's lock.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := fast.Result(ctx, fast.Tree().Root())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, syntax.KindFile, fast.Tree().Kind(<-fake.Entered))

	close(fake.Gate)
	require.NoError(t, <-done)
}
