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

// Package sema is a small name-resolution analyzer for Kotlin syntax trees.
//
// It plugs into the analysis cache as the scope analyzer:
//
//	an := sema.New(sema.Options{Logger: logger})
//	project := analysis.NewProject(an, analysis.Options{})
//
// For every declaration it binds the declared name and an inferred type, and
// for every bare name reference the type of the declaration it resolves to.
// It reports three diagnostics:
//
//   - UNRESOLVED_REFERENCE: a lower-case name that resolves to nothing
//     visible, including locals used before their declaration.
//   - UNUSED_VARIABLE: a local property no later statement refers to.
//   - REDECLARATION: a property, class or parameter declared twice in the
//     same container.
//
// Type inference is limited to literals, declared types, references and
// calls of known functions. Everything else is Any.
package sema
