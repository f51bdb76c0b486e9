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

package modtrack

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/kraklabs/inblock/pkg/syntax"
)

// Pending is one in-block modified scope waiting to be merged.
type Pending struct {
	Scope syntax.NodeID

	// Stamp is the file modification count when the scope was last recorded.
	Stamp uint64
}

type fileState struct {
	outOfBlock uint64
	modCount   uint64
	pending    map[syntax.NodeID]uint64
}

// Tracker keeps per-file modification state: the out-of-block counter, the
// total modification count, and the scopes modified in-block since they were
// last merged. It is safe for concurrent use.
type Tracker struct {
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]*fileState
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger,
		files:  make(map[string]*fileState),
	}
}

func (t *Tracker) stateLocked(file string) *fileState {
	st, ok := t.files[file]
	if !ok {
		st = &fileState{pending: make(map[syntax.NodeID]uint64)}
		t.files[file] = st
	}
	return st
}

// Record classifies edit against tree and applies the outcome to file's
// state. In-block scopes nested with an already pending scope turn the edit
// out-of-block.
func (t *Tracker) Record(file string, tree *syntax.Tree, edit syntax.Edit) Classification {
	c := Classify(tree, edit)

	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stateLocked(file)
	st.modCount++

	if c.Outcome == InBlock {
		for _, s := range c.Scopes {
			for p := range st.pending {
				if p != s.Decl && (tree.IsAncestor(p, s.Decl, true) || tree.IsAncestor(s.Decl, p, true)) {
					c = outOfBlock(ReasonNested)
					break
				}
			}
			if c.Outcome != InBlock {
				break
			}
		}
	}

	switch c.Outcome {
	case Ignored:
		t.logger.Debug("modtrack.ignored", "file", file)
	case InBlock:
		for _, s := range c.Scopes {
			st.pending[s.Decl] = st.modCount
		}
		t.logger.Debug("modtrack.in_block",
			"file", file,
			"scopes", len(c.Scopes),
			"pending", len(st.pending),
		)
	case OutOfBlock:
		t.bumpLocked(st)
		t.logger.Debug("modtrack.out_of_block",
			"file", file,
			"reason", c.Reason,
			"out_of_block_count", st.outOfBlock,
		)
	}
	recordClassification(c.Outcome)
	return c
}

func (t *Tracker) bumpLocked(st *fileState) {
	st.outOfBlock++
	clear(st.pending)
}

// Invalidate forces an out-of-block change for file.
func (t *Tracker) Invalidate(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stateLocked(file)
	st.modCount++
	t.bumpLocked(st)
	recordClassification(OutOfBlock)
	t.logger.Debug("modtrack.out_of_block",
		"file", file,
		"reason", ReasonInvalidated,
		"out_of_block_count", st.outOfBlock,
	)
}

// Forget drops all state for file.
func (t *Tracker) Forget(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, file)
}

// OutOfBlockCount returns the number of out-of-block changes seen for file.
func (t *Tracker) OutOfBlockCount(file string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.files[file]; ok {
		return st.outOfBlock
	}
	return 0
}

// ModificationCount returns the number of edits recorded for file,
// formatting-only edits included.
func (t *Tracker) ModificationCount(file string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.files[file]; ok {
		return st.modCount
	}
	return 0
}

// Pending returns a snapshot of file's pending scopes ordered by stamp.
func (t *Tracker) Pending(file string) []Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.files[file]
	if !ok {
		return nil
	}
	out := make([]Pending, 0, len(st.pending))
	for id, stamp := range st.pending {
		out = append(out, Pending{Scope: id, Stamp: stamp})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stamp != out[j].Stamp {
			return out[i].Stamp < out[j].Stamp
		}
		return out[i].Scope.Index < out[j].Scope.Index
	})
	return out
}

// IsPending returns the current stamp of scope if it is pending.
func (t *Tracker) IsPending(file string, scope syntax.NodeID) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.files[file]
	if !ok {
		return 0, false
	}
	stamp, ok := st.pending[scope]
	return stamp, ok
}

// Consume removes scope from file's pending set if it was not recorded again
// after stamp. It reports whether the scope was removed.
func (t *Tracker) Consume(file string, scope syntax.NodeID, stamp uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.files[file]
	if !ok {
		return false
	}
	if cur, ok := st.pending[scope]; !ok || cur != stamp {
		return false
	}
	delete(st.pending, scope)
	return true
}
