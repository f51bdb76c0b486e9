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

// Package session connects source text to the analysis cache.
//
// A Workspace holds the open documents of a project. Each text update is
// reparsed with the Kotlin front end, synced into the document's long-lived
// syntax tree and recorded with the project, which classifies the edit and
// marks the affected scopes pending:
//
//	ws := session.NewWorkspace(parser, project, logger)
//	_ = ws.Open(ctx, "Main.kt", text)
//	change, _ := ws.Update(ctx, "Main.kt", edited)
//	findings, _, _ := ws.Diagnostics(ctx, "Main.kt")
//
// Edits reach a workspace in three ways:
//
//   - Discover lists the sources under a root for bulk checks.
//   - Script and Replay apply recorded edits (replace, unified-diff patch,
//     append) and check the outcome of each one, producing a Report.
//   - Watcher follows the file system and applies changes as they land.
package session
