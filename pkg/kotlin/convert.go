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

package kotlin

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/inblock/pkg/syntax"
)

// =============================================================================
// TREE-SITTER TO SPEC CONVERSION
// =============================================================================
//
// The grammar's node types are mapped onto syntax kinds. Wrapper nodes that
// carry no scope (modifiers, call suffixes, argument lists) are spliced into
// their parent, and bodies are normalized so that every block reads
// `{ Statements }` and every `= expr` initializer sits in an ExpressionBody.

var literalTypes = map[string]bool{
	"integer_literal":   true,
	"long_literal":      true,
	"hex_literal":       true,
	"bin_literal":       true,
	"unsigned_literal":  true,
	"real_literal":      true,
	"boolean_literal":   true,
	"character_literal": true,
	"string_literal":    true,
	"null_literal":      true,
}

var typeRefTypes = map[string]bool{
	"user_type":           true,
	"nullable_type":       true,
	"non_nullable_type":   true,
	"function_type":       true,
	"parenthesized_type":  true,
	"type_reference":      true,
	"definitely_non_null": true,
}

// splicedTypes are wrappers whose children are hoisted into the parent.
var splicedTypes = map[string]bool{
	"import_list":           true,
	"modifiers":             true,
	"call_suffix":           true,
	"value_arguments":       true,
	"annotated_lambda":      true,
	"primary_constructor":   true,
	"type_parameters":       true,
	"delegation_specifiers": true,
	"identifier":            true,
}

// tokenTypes are named grammar nodes that read as keywords.
var tokenTypes = map[string]bool{
	"binding_pattern_kind":      true,
	"visibility_modifier":       true,
	"inheritance_modifier":      true,
	"member_modifier":           true,
	"function_modifier":         true,
	"property_modifier":         true,
	"parameter_modifier":        true,
	"platform_modifier":         true,
	"class_modifier":            true,
	"variance_modifier":         true,
	"reification_modifier":      true,
	"type_projection_modifiers": true,
}

// nameParents are node types whose simple_identifier children name
// something instead of referring to it.
var nameParents = map[string]bool{
	"function_declaration": true,
	"variable_declaration": true,
	"parameter":            true,
	"class_parameter":      true,
	"identifier":           true,
	"import_header":        true,
	"import_alias":         true,
	"package_header":       true,
	"navigation_suffix":    true,
	"label":                true,
	"enum_entry":           true,
	"type_alias":           true,
}

type converter struct {
	src []byte
}

func (c *converter) leaf(kind syntax.Kind, n *sitter.Node) *syntax.Spec {
	return &syntax.Spec{
		Kind:  kind,
		Text:  n.Content(c.src),
		Start: int(n.StartByte()),
		End:   int(n.EndByte()),
	}
}

func (c *converter) node(kind syntax.Kind, n *sitter.Node, children []*syntax.Spec) *syntax.Spec {
	return &syntax.Spec{
		Kind:     kind,
		Start:    int(n.StartByte()),
		End:      int(n.EndByte()),
		Children: children,
	}
}

// wrap builds a synthetic node spanning its children.
func wrap(kind syntax.Kind, children []*syntax.Spec, start, end int) *syntax.Spec {
	if len(children) > 0 {
		start = children[0].Start
		end = children[len(children)-1].End
	}
	return &syntax.Spec{Kind: kind, Start: start, End: end, Children: children}
}

func (c *converter) children(n *sitter.Node) []*syntax.Spec {
	var out []*syntax.Spec
	typ := n.Type()
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, c.convert(typ, n.Child(i))...)
	}
	return foldAccessors(out)
}

func (c *converter) file(root *sitter.Node, script bool) *syntax.Spec {
	children := c.children(root)
	if !script {
		return c.node(syntax.KindFile, root, children)
	}

	var header, body []*syntax.Spec
	for _, ch := range children {
		switch {
		case len(body) == 0 && (ch.Kind == syntax.KindPackage || ch.Kind == syntax.KindImport ||
			ch.Kind == syntax.KindAnnotation || ch.Kind == syntax.KindComment):
			header = append(header, ch)
		case ch.Kind == syntax.KindStatements:
			for _, s := range ch.Children {
				body = append(body, scriptStatement(s))
			}
		default:
			body = append(body, scriptStatement(ch))
		}
	}
	end := int(root.EndByte())
	block := wrap(syntax.KindBlock, body, end, end)
	scriptSpec := wrap(syntax.KindScript, []*syntax.Spec{block}, block.Start, block.End)
	return c.node(syntax.KindFile, root, append(header, scriptSpec))
}

// scriptStatement turns a top-level call with a trailing lambda into a script
// initializer, as in `plugins { ... }`.
func scriptStatement(s *syntax.Spec) *syntax.Spec {
	if s.Kind != syntax.KindCall || len(s.Children) == 0 {
		return s
	}
	if s.Children[len(s.Children)-1].Kind != syntax.KindLambda {
		return s
	}
	return wrap(syntax.KindScriptInitializer, []*syntax.Spec{s}, s.Start, s.End)
}

func one(s *syntax.Spec) []*syntax.Spec { return []*syntax.Spec{s} }

// convert maps one grammar node to zero or more specs.
func (c *converter) convert(parent string, n *sitter.Node) []*syntax.Spec {
	if n == nil {
		return nil
	}
	typ := n.Type()
	if !n.IsNamed() {
		if typ == "null" {
			return one(c.leaf(syntax.KindLiteral, n))
		}
		return one(c.leaf(syntax.KindToken, n))
	}

	switch {
	case literalTypes[typ]:
		return one(c.leaf(syntax.KindLiteral, n))
	case tokenTypes[typ]:
		return one(c.leaf(syntax.KindToken, n))
	case typeRefTypes[typ]:
		return one(c.node(syntax.KindTypeRef, n, c.children(n)))
	case splicedTypes[typ]:
		return c.children(n)
	}

	switch typ {
	case "line_comment", "multiline_comment", "comment", "shebang_line":
		return one(c.leaf(syntax.KindComment, n))

	case "simple_identifier":
		id := c.leaf(syntax.KindIdentifier, n)
		if nameParents[parent] {
			return one(id)
		}
		return one(wrap(syntax.KindExpression, one(id), id.Start, id.End))

	case "type_identifier":
		return one(c.leaf(syntax.KindIdentifier, n))

	case "package_header":
		return one(c.node(syntax.KindPackage, n, c.children(n)))
	case "import_header":
		return one(c.node(syntax.KindImport, n, c.children(n)))
	case "type_alias":
		return one(c.node(syntax.KindTypeAlias, n, c.children(n)))
	case "annotation", "file_annotation":
		return one(c.node(syntax.KindAnnotation, n, c.children(n)))
	case "type_parameter":
		return one(c.node(syntax.KindTypeParameter, n, c.children(n)))

	case "function_declaration":
		return one(c.node(syntax.KindFunction, n, c.children(n)))
	case "function_value_parameters", "class_parameters", "lambda_parameters":
		return one(c.node(syntax.KindParameters, n, c.children(n)))
	case "parameter", "class_parameter":
		return one(c.node(syntax.KindParameter, n, c.children(n)))
	case "function_body":
		return one(c.body(n))

	case "property_declaration":
		return one(c.property(n))
	case "variable_declaration":
		return one(c.node(syntax.KindVariable, n, c.children(n)))
	case "getter", "setter":
		return one(c.node(syntax.KindAccessor, n, c.children(n)))

	case "class_declaration", "object_declaration", "companion_object", "interface_declaration":
		return one(c.node(syntax.KindClass, n, c.children(n)))
	case "class_body", "enum_class_body":
		return one(c.node(syntax.KindClassBody, n, c.children(n)))
	case "delegation_specifier":
		return c.delegation(n)
	case "anonymous_initializer":
		return one(c.initializer(n))

	case "block":
		return one(c.block(syntax.KindBlock, n, c.children(n)))
	case "control_structure_body":
		children := c.children(n)
		if len(children) > 0 && isToken(children[0], "{") {
			return one(c.block(syntax.KindBlock, n, children))
		}
		return children
	case "statements":
		return one(c.node(syntax.KindStatements, n, c.children(n)))
	case "lambda_literal":
		return one(c.block(syntax.KindLambda, n, c.children(n)))

	case "call_expression":
		return one(c.call(n))
	case "value_argument":
		return c.argument(n)
	}

	if n.ChildCount() == 0 {
		return one(c.leaf(syntax.KindExpression, n))
	}
	return one(c.node(syntax.KindExpression, n, c.children(n)))
}

// foldAccessors moves getters and setters, which the grammar emits as
// siblings following their property, under that property. Comments between
// the two move along to keep source order.
func foldAccessors(specs []*syntax.Spec) []*syntax.Spec {
	out := specs[:0]
	for _, s := range specs {
		if s.Kind != syntax.KindAccessor {
			out = append(out, s)
			continue
		}
		prop := len(out) - 1
		for prop >= 0 && out[prop].Kind.IsTrivia() {
			prop--
		}
		if prop < 0 || out[prop].Kind != syntax.KindProperty {
			out = append(out, s)
			continue
		}
		p := out[prop]
		p.Children = append(p.Children, out[prop+1:]...)
		p.Children = append(p.Children, s)
		if s.End > p.End {
			p.End = s.End
		}
		out = out[:prop+1]
	}
	return out
}

func isToken(s *syntax.Spec, text string) bool {
	return s.Kind == syntax.KindToken && s.Text == text
}

// body converts a function_body into a Block or an `= expr` ExpressionBody.
func (c *converter) body(n *sitter.Node) *syntax.Spec {
	children := c.children(n)
	for _, ch := range children {
		if ch.Kind.IsTrivia() {
			continue
		}
		if isToken(ch, "=") {
			return c.node(syntax.KindExpressionBody, n, children)
		}
		break
	}
	if len(children) == 1 && children[0].Kind == syntax.KindBlock {
		return children[0]
	}
	return c.block(syntax.KindBlock, n, children)
}

// block normalizes `{ ... }` into [{, (params, ->)?, Statements, }].
func (c *converter) block(kind syntax.Kind, n *sitter.Node, children []*syntax.Spec) *syntax.Spec {
	lbrace, rbrace := -1, -1
	for i, ch := range children {
		if lbrace < 0 && isToken(ch, "{") {
			lbrace = i
		}
		if isToken(ch, "}") {
			rbrace = i
		}
	}
	if lbrace < 0 || rbrace < lbrace {
		return c.node(kind, n, children)
	}

	var head, inner []*syntax.Spec
	head = append(head, children[:lbrace+1]...)
	rest := children[lbrace+1 : rbrace]
	if kind == syntax.KindLambda {
		for len(rest) > 0 && (rest[0].Kind == syntax.KindParameters || isToken(rest[0], "->")) {
			head = append(head, rest[0])
			rest = rest[1:]
		}
	}
	if len(rest) == 1 && rest[0].Kind == syntax.KindStatements {
		inner = rest
	} else {
		brace := children[lbrace]
		inner = one(wrap(syntax.KindStatements, rest, brace.End, brace.End))
	}

	out := append(head, inner...)
	out = append(out, children[rbrace:]...)
	return c.node(kind, n, out)
}

// property wraps the initializer after `=` into an ExpressionBody.
func (c *converter) property(n *sitter.Node) *syntax.Spec {
	children := c.children(n)
	out := make([]*syntax.Spec, 0, len(children))
	wrapNext := false
	for _, ch := range children {
		switch {
		case isToken(ch, "="):
			wrapNext = true
			out = append(out, ch)
		case wrapNext && !ch.Kind.IsTrivia():
			wrapNext = false
			out = append(out, wrap(syntax.KindExpressionBody, one(ch), ch.Start, ch.End))
		default:
			out = append(out, ch)
		}
	}
	return c.node(syntax.KindProperty, n, out)
}

func (c *converter) initializer(n *sitter.Node) *syntax.Spec {
	children := c.children(n)
	if len(children) == 0 {
		return c.node(syntax.KindClassInitializer, n, nil)
	}
	// init { ... }: the keyword stays, the rest forms the block.
	out := []*syntax.Spec{children[0]}
	rest := children[1:]
	if len(rest) == 1 && rest[0].Kind == syntax.KindBlock {
		out = append(out, rest[0])
	} else {
		out = append(out, c.block(syntax.KindBlock, n, rest))
		blk := out[1]
		if len(rest) > 0 {
			blk.Start, blk.End = rest[0].Start, rest[len(rest)-1].End
		}
	}
	return c.node(syntax.KindClassInitializer, n, out)
}

// delegation converts a super-type entry. Constructor invocations become
// super-type calls; plain super-types stay type references.
func (c *converter) delegation(n *sitter.Node) []*syntax.Spec {
	var out []*syntax.Spec
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch.Type() == "constructor_invocation" {
			out = append(out, c.node(syntax.KindSuperTypeCall, ch, c.children(ch)))
			continue
		}
		out = append(out, c.convert(n.Type(), ch)...)
	}
	return out
}

// call keeps a simple callee as a bare identifier and splices the suffix.
func (c *converter) call(n *sitter.Node) *syntax.Spec {
	var out []*syntax.Spec
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if i == 0 && ch.Type() == "simple_identifier" {
			out = append(out, c.leaf(syntax.KindIdentifier, ch))
			continue
		}
		out = append(out, c.convert("call_expression", ch)...)
	}
	return c.node(syntax.KindCall, n, out)
}

// argument splices a value argument; a `name =` label stays an identifier.
func (c *converter) argument(n *sitter.Node) []*syntax.Spec {
	labeled := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if ch := n.Child(i); !ch.IsNamed() && ch.Type() == "=" {
			labeled = true
		}
	}
	var out []*syntax.Spec
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if labeled && i == 0 && ch.Type() == "simple_identifier" {
			out = append(out, c.leaf(syntax.KindIdentifier, ch))
			continue
		}
		out = append(out, c.convert("value_argument", ch)...)
	}
	return out
}
