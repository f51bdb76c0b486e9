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

package session_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/inblock/pkg/analysis"
	"github.com/kraklabs/inblock/pkg/kotlin"
	"github.com/kraklabs/inblock/pkg/modtrack"
	"github.com/kraklabs/inblock/pkg/sema"
	"github.com/kraklabs/inblock/pkg/session"
	"github.com/kraklabs/inblock/pkg/syntax"
)

const mainKt = `fun main() {
    val foo = 1
    val bar = foo
    println(bar)
}

fun other() {
    println(2)
}
`

func newWorkspace(t *testing.T) (*session.Workspace, *analysis.Counting) {
	t.Helper()
	p := kotlin.NewParser(kotlin.Options{})
	t.Cleanup(p.Close)
	counter := analysis.NewCounting(sema.New(sema.Options{}))
	project := analysis.NewProject(counter, analysis.Options{})
	return session.NewWorkspace(p, project, nil), counter
}

func codesOf(findings []session.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}

func mainDecl(t *testing.T, ws *session.Workspace, path string) syntax.NodeID {
	t.Helper()
	tree, err := ws.Tree(path)
	require.NoError(t, err)
	var decl syntax.NodeID
	tree.Walk(tree.Root(), func(n syntax.Node) bool {
		if n.Kind == syntax.KindFunction {
			if id, ok := tree.FirstChild(n.ID, syntax.KindIdentifier); ok && tree.Text(id) == "main" {
				decl = n.ID
			}
			return false
		}
		return true
	})
	require.False(t, decl.IsZero(), "main not found")
	return decl
}

func TestWorkspace_OpenUpdateDiagnostics(t *testing.T) {
	ctx := context.Background()
	ws, counter := newWorkspace(t)
	require.NoError(t, ws.Open(ctx, "Main.kt", []byte(mainKt)))

	findings, res, err := ws.Diagnostics(ctx, "Main.kt")
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, analysis.StatusSuccess, res.Status)
	assert.Equal(t, 1, counter.Total())

	edited := strings.Replace(mainKt, "val foo = 1", "val foo = 2", 1)
	change, err := ws.Update(ctx, "Main.kt", []byte(edited))
	require.NoError(t, err)
	assert.Equal(t, 2, change.Version)
	require.Equal(t, modtrack.InBlock, change.Classification.Outcome, "reason: %s", change.Classification.Reason)

	findings, res, err = ws.Diagnostics(ctx, "Main.kt")
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, 1, res.Depth())
	assert.Equal(t, 2, counter.Total())
	assert.Equal(t, 1, counter.Calls(mainDecl(t, ws, "Main.kt")))

	text, err := ws.Text("Main.kt")
	require.NoError(t, err)
	assert.Equal(t, edited, string(text))
}

func TestWorkspace_SwapLines(t *testing.T) {
	ctx := context.Background()
	ws, counter := newWorkspace(t)
	require.NoError(t, ws.Open(ctx, "Main.kt", []byte(mainKt)))
	_, _, err := ws.Diagnostics(ctx, "Main.kt")
	require.NoError(t, err)

	swapped := strings.Replace(mainKt,
		"    val foo = 1\n    val bar = foo\n",
		"    val bar = foo\n    val foo = 1\n", 1)
	change, err := ws.Update(ctx, "Main.kt", []byte(swapped))
	require.NoError(t, err)
	require.Equal(t, modtrack.InBlock, change.Classification.Outcome, "reason: %s", change.Classification.Reason)

	findings, _, err := ws.Diagnostics(ctx, "Main.kt")
	require.NoError(t, err)
	require.Equal(t, []string{sema.CodeUnresolvedReference, sema.CodeUnusedVariable}, codesOf(findings))
	assert.Equal(t, 2, counter.Total())

	unresolved := findings[0]
	assert.Equal(t, "Main.kt", unresolved.Path)
	assert.Equal(t, 2, unresolved.Line)
	assert.Equal(t, 15, unresolved.Column)
	assert.Equal(t, "error", unresolved.Severity)
	assert.Contains(t, unresolved.String(), "Main.kt:2:15: error UNRESOLVED_REFERENCE")

	unused := findings[1]
	assert.Equal(t, 3, unused.Line)
	assert.Equal(t, 5, unused.Column)
	assert.Equal(t, "warning", unused.Severity)
}

func TestWorkspace_OutOfBlockEdit(t *testing.T) {
	ctx := context.Background()
	ws, counter := newWorkspace(t)
	require.NoError(t, ws.Open(ctx, "Main.kt", []byte(mainKt)))
	_, _, err := ws.Diagnostics(ctx, "Main.kt")
	require.NoError(t, err)

	change, err := ws.Update(ctx, "Main.kt", []byte(mainKt+"\nfun extra() {\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, modtrack.OutOfBlock, change.Classification.Outcome)

	_, res, err := ws.Diagnostics(ctx, "Main.kt")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Depth())
	assert.Equal(t, 2, counter.Total())
}

func TestWorkspace_UnchangedText(t *testing.T) {
	ctx := context.Background()
	ws, _ := newWorkspace(t)
	require.NoError(t, ws.Open(ctx, "Main.kt", []byte(mainKt)))

	change, err := ws.Update(ctx, "Main.kt", []byte(mainKt))
	require.NoError(t, err)
	assert.True(t, change.Unchanged)
	assert.Equal(t, 1, change.Version)
	assert.Equal(t, uint64(0), ws.Project().Tracker().ModificationCount("Main.kt"))
}

func TestWorkspace_ResultAt(t *testing.T) {
	ctx := context.Background()
	ws, counter := newWorkspace(t)
	require.NoError(t, ws.Open(ctx, "Main.kt", []byte(mainKt)))

	offset := strings.Index(mainKt, "println(2)") + len("println(")
	res, err := ws.ResultAt(ctx, "Main.kt", offset)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusSuccess, res.Status)
	assert.Equal(t, 1, counter.Total())
}

func TestWorkspace_Errors(t *testing.T) {
	ctx := context.Background()
	ws, _ := newWorkspace(t)

	_, err := ws.Update(ctx, "Missing.kt", []byte("fun x() {}"))
	assert.ErrorIs(t, err, session.ErrNotOpen)
	_, _, err = ws.Diagnostics(ctx, "Missing.kt")
	assert.ErrorIs(t, err, session.ErrNotOpen)
	assert.ErrorIs(t, ws.Invalidate("Missing.kt"), session.ErrNotOpen)

	require.NoError(t, ws.Open(ctx, "Main.kt", []byte(mainKt)))
	assert.ErrorIs(t, ws.Open(ctx, "Main.kt", []byte(mainKt)), session.ErrAlreadyOpen)
}

func TestWorkspace_InvalidateAndClose(t *testing.T) {
	ctx := context.Background()
	ws, counter := newWorkspace(t)
	require.NoError(t, ws.Open(ctx, "Main.kt", []byte(mainKt)))
	require.NoError(t, ws.Open(ctx, "Other.kt", []byte("fun x() {\n}\n")))
	assert.Equal(t, []string{"Main.kt", "Other.kt"}, ws.Paths())

	_, _, err := ws.Diagnostics(ctx, "Main.kt")
	require.NoError(t, err)
	require.NoError(t, ws.Invalidate("Main.kt"))
	_, _, err = ws.Diagnostics(ctx, "Main.kt")
	require.NoError(t, err)
	assert.Equal(t, 2, counter.Total())

	ws.Close("Other.kt")
	assert.False(t, ws.IsOpen("Other.kt"))
	_, ok := ws.Project().File("Other.kt")
	assert.False(t, ok)
	assert.Equal(t, []string{"Main.kt"}, ws.Paths())
}
