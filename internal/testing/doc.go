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

// Package testing provides test helpers shared by the inblock packages.
//
// # Building Trees
//
// The builders return syntax specs shaped like the Kotlin front end output,
// so tests can describe files without parsing source:
//
//	spec := testing.File(
//	    testing.Fun("foo", testing.Val("a", "", testing.Lit("1"))),
//	    testing.Fun("bar", testing.Val("b", "", testing.Lit("2"))),
//	)
//	tree := testing.MustTree(t, spec)
//	foo := testing.Decl(t, tree, syntax.KindFunction, "foo")
//
// Edits are made on a fresh spec and synced back:
//
//	next := spec.Clone()
//	testing.SetLiteral(next, "1", "10")
//	edit := testing.MustSync(t, tree, next)
//
// # Fake Analyzer
//
// FakeAnalyzer reports one LITERAL diagnostic per literal in the analyzed
// scope, with the literal text as message, which makes it easy to tell which
// analysis a merged result came from. Failures, panics and readiness can be
// scripted per declaration name.
package testing
