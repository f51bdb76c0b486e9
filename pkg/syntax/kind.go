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

package syntax

// Kind is the closed set of node kinds the analysis layers understand.
// Front ends map their grammar node types onto these.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFile
	KindPackage
	KindImport
	KindScript
	KindClass
	KindClassBody
	KindSuperTypeCall
	KindFunction
	KindParameters
	KindParameter
	KindTypeRef
	KindTypeParameter
	KindTypeAlias
	KindAnnotation
	KindProperty
	KindVariable
	KindAccessor
	KindClassInitializer
	KindScriptInitializer
	KindBlock
	KindExpressionBody
	KindStatements
	KindLambda
	KindCall
	KindIdentifier
	KindLiteral
	KindExpression
	KindToken
	KindComment
	KindWhitespace
)

var kindNames = [...]string{
	KindInvalid:           "invalid",
	KindFile:              "file",
	KindPackage:           "package",
	KindImport:            "import",
	KindScript:            "script",
	KindClass:             "class",
	KindClassBody:         "class_body",
	KindSuperTypeCall:     "super_type_call",
	KindFunction:          "function",
	KindParameters:        "parameters",
	KindParameter:         "parameter",
	KindTypeRef:           "type_ref",
	KindTypeParameter:     "type_parameter",
	KindTypeAlias:         "type_alias",
	KindAnnotation:        "annotation",
	KindProperty:          "property",
	KindVariable:          "variable",
	KindAccessor:          "accessor",
	KindClassInitializer:  "class_initializer",
	KindScriptInitializer: "script_initializer",
	KindBlock:             "block",
	KindExpressionBody:    "expression_body",
	KindStatements:        "statements",
	KindLambda:            "lambda",
	KindCall:              "call",
	KindIdentifier:        "identifier",
	KindLiteral:           "literal",
	KindExpression:        "expression",
	KindToken:             "token",
	KindComment:           "comment",
	KindWhitespace:        "whitespace",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsTrivia reports whether nodes of this kind carry no semantics
// (whitespace and comments).
func (k Kind) IsTrivia() bool {
	return k == KindWhitespace || k == KindComment
}

// IsDeclaration reports whether the kind declares a named entity.
func (k Kind) IsDeclaration() bool {
	switch k {
	case KindClass, KindFunction, KindProperty, KindVariable, KindParameter, KindTypeAlias:
		return true
	default:
		return false
	}
}
