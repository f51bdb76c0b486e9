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

	kt "github.com/kraklabs/inblock/internal/testing"
	"github.com/kraklabs/inblock/pkg/modtrack"
	"github.com/kraklabs/inblock/pkg/syntax"
)

func TestAnalyzableParent(t *testing.T) {
	base := kt.File(
		syntax.NewNode(syntax.KindImport, syntax.NewLeaf(syntax.KindToken, "import"), syntax.NewLeaf(syntax.KindIdentifier, "x")),
		syntax.NewNode(syntax.KindFunction,
			syntax.NewLeaf(syntax.KindToken, "fun"),
			syntax.NewLeaf(syntax.KindIdentifier, "foo"),
			kt.Params("p", "Int"),
			kt.BlockOf(kt.Fun("local", kt.Lit("1"))),
		),
		kt.Class("C", kt.SuperCall("Base", kt.Lit("2")),
			kt.Init(kt.Lit("3")),
			kt.Val("prop", "Int", kt.Lit("4")),
		),
	)
	tree := kt.MustTree(t, base)
	root := tree.Root()
	foo := kt.Decl(t, tree, syntax.KindFunction, "foo")
	class := kt.Decl(t, tree, syntax.KindClass, "C")
	prop := kt.Decl(t, tree, syntax.KindProperty, "prop")
	imp, _ := tree.FirstChild(root, syntax.KindImport)
	param := kt.Decl(t, tree, syntax.KindParameter, "p")
	className, _ := tree.FirstChild(class, syntax.KindIdentifier)

	tests := []struct {
		name string
		node syntax.NodeID
		want syntax.NodeID
	}{
		{"file root", root, root},
		{"local function body", kt.Literal(t, tree, "1"), foo},
		{"function itself", foo, foo},
		{"parameter", param, foo},
		{"import", imp, imp},
		{"super-type call lambda", kt.Literal(t, tree, "2"), class},
		{"class initializer", kt.Literal(t, tree, "3"), class},
		{"member property", kt.Literal(t, tree, "4"), prop},
		{"class name", className, class},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, modtrack.AnalyzableParent(tree, tt.node))
		})
	}
}

func TestAnalyzableParent_StaleNode(t *testing.T) {
	base := kt.File(kt.Fun("foo", kt.Lit("1")))
	tree := kt.MustTree(t, base)
	lit := kt.Literal(t, tree, "1")

	kt.MustSync(t, tree, kt.File(kt.Fun("foo", kt.Lit("2"))))
	assert.True(t, modtrack.AnalyzableParent(tree, lit).IsZero())
}
