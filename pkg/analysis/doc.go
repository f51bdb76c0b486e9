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

// Package analysis memoizes per-scope semantic analysis results of a file.
//
// A FileCache maps syntax scopes to immutable results. The file root entry
// covers the whole file. When a scope is edited in-block (see package
// modtrack), only that scope is analyzed again and its fresh result is
// stacked over the cached root as a Composite layer: lookups for nodes inside
// the scope are routed to the fresh context, all others to the parent.
// Out-of-block edits evict every entry of the file.
//
// # Usage
//
//	project := analysis.NewProject(analyzer, analysis.Options{})
//	fc := project.Open("main.kt", tree)
//
//	edit, _ := tree.Sync(newSpec)
//	project.Tracker().Record("main.kt", tree, edit)
//
//	res, err := fc.Result(ctx, node)
//	if err != nil {
//	    return err // cancellation or analysis.ErrIndexNotReady
//	}
//	for _, d := range res.Context.Diagnostics() {
//	    fmt.Println(d.Code, d.Message)
//	}
//
// # Errors
//
// Cancellation and ErrIndexNotReady are returned to the caller and nothing
// is cached. Any other analyzer failure, panics included, is logged and
// cached as an InternalError result with an empty context until the next
// out-of-block change.
package analysis
