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

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrEmptySpec is returned when a tree is built or synced from a nil spec.
var ErrEmptySpec = errors.New("syntax: empty spec")

// NodeID identifies a node slot in a Tree. Gen distinguishes successive
// occupants of the same slot, so IDs of removed nodes never alias new ones.
// The zero NodeID refers to no node.
type NodeID struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether id refers to no node.
func (id NodeID) IsZero() bool {
	return id.Gen == 0
}

func (id NodeID) String() string {
	return fmt.Sprintf("n%d@%d", id.Index, id.Gen)
}

// Node is a read-only snapshot of one tree node.
type Node struct {
	ID       NodeID
	Kind     Kind
	Text     string
	Start    int
	End      int
	Parent   NodeID
	Children []NodeID
}

type slot struct {
	gen      uint32
	live     bool
	kind     Kind
	text     string
	start    int
	end      int
	parent   NodeID
	children []NodeID
}

// Tree is an arena of syntax nodes owned by the host. Readers may call any
// accessor concurrently; Sync and Reset take the write lock.
type Tree struct {
	mu      sync.RWMutex
	slots   []slot
	free    []uint32
	root    NodeID
	version uint64
}

// NewTree materializes spec as a new tree.
func NewTree(spec *Spec) (*Tree, error) {
	if spec == nil {
		return nil, ErrEmptySpec
	}
	t := &Tree{}
	t.root = t.alloc(spec, NodeID{})
	return t, nil
}

// Root returns the ID of the root node. It is stable for the tree's lifetime.
func (t *Tree) Root() NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Version increases on every structural change.
func (t *Tree) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots) - len(t.free)
}

// Valid reports whether id names a live node.
func (t *Tree) Valid(id NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.validLocked(id)
}

func (t *Tree) validLocked(id NodeID) bool {
	if id.IsZero() || int(id.Index) >= len(t.slots) {
		return false
	}
	s := &t.slots[id.Index]
	return s.live && s.gen == id.Gen
}

// Node returns a snapshot of the node, or false if id is stale.
func (t *Tree) Node(id NodeID) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validLocked(id) {
		return Node{}, false
	}
	return t.snapshotLocked(id), true
}

func (t *Tree) snapshotLocked(id NodeID) Node {
	s := &t.slots[id.Index]
	return Node{
		ID:       id,
		Kind:     s.kind,
		Text:     s.text,
		Start:    s.start,
		End:      s.end,
		Parent:   s.parent,
		Children: append([]NodeID(nil), s.children...),
	}
}

// Kind returns the node kind, or KindInvalid for a stale id.
func (t *Tree) Kind(id NodeID) Kind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validLocked(id) {
		return KindInvalid
	}
	return t.slots[id.Index].kind
}

// Parent returns the parent of id; zero for the root or a stale id.
func (t *Tree) Parent(id NodeID) NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validLocked(id) {
		return NodeID{}
	}
	return t.slots[id.Index].parent
}

// Children returns a copy of the child list of id.
func (t *Tree) Children(id NodeID) []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validLocked(id) {
		return nil
	}
	return append([]NodeID(nil), t.slots[id.Index].children...)
}

// FirstChild returns the first direct child of the given kind.
func (t *Tree) FirstChild(id NodeID, kind Kind) (NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validLocked(id) {
		return NodeID{}, false
	}
	for _, c := range t.slots[id.Index].children {
		if t.slots[c.Index].kind == kind {
			return c, true
		}
	}
	return NodeID{}, false
}

// Text returns the concatenated leaf text of the subtree rooted at id.
func (t *Tree) Text(id NodeID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validLocked(id) {
		return ""
	}
	var b strings.Builder
	t.textLocked(id, &b)
	return b.String()
}

func (t *Tree) textLocked(id NodeID, b *strings.Builder) {
	s := &t.slots[id.Index]
	if len(s.children) == 0 {
		b.WriteString(s.text)
		return
	}
	for _, c := range s.children {
		t.textLocked(c, b)
	}
}

// Ancestors returns the strict ancestors of id, nearest first.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validLocked(id) {
		return nil
	}
	var out []NodeID
	for p := t.slots[id.Index].parent; !p.IsZero(); p = t.slots[p.Index].parent {
		out = append(out, p)
	}
	return out
}

// IsAncestor reports whether anc is an ancestor of id. When strict is false
// a node counts as its own ancestor.
func (t *Tree) IsAncestor(anc, id NodeID, strict bool) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validLocked(anc) || !t.validLocked(id) {
		return false
	}
	cur := id
	if strict {
		cur = t.slots[id.Index].parent
	}
	for !cur.IsZero() {
		if cur == anc {
			return true
		}
		cur = t.slots[cur.Index].parent
	}
	return false
}

// Subtree returns the set of strict descendants of id.
func (t *Tree) Subtree(id NodeID) map[NodeID]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := make(map[NodeID]struct{})
	if !t.validLocked(id) {
		return set
	}
	var visit func(NodeID)
	visit = func(n NodeID) {
		for _, c := range t.slots[n.Index].children {
			set[c] = struct{}{}
			visit(c)
		}
	}
	visit(id)
	return set
}

// Walk visits the subtree rooted at id in pre-order. Returning false from fn
// skips the children of that node. The subtree is snapshotted first, so fn
// may call back into the tree.
func (t *Tree) Walk(id NodeID, fn func(Node) bool) {
	type item struct {
		node  Node
		depth int
	}
	var items []item
	t.mu.RLock()
	if t.validLocked(id) {
		var visit func(NodeID, int)
		visit = func(n NodeID, depth int) {
			items = append(items, item{node: t.snapshotLocked(n), depth: depth})
			for _, c := range t.slots[n.Index].children {
				visit(c, depth+1)
			}
		}
		visit(id, 0)
	}
	t.mu.RUnlock()

	skipBelow := -1
	for _, it := range items {
		if skipBelow >= 0 {
			if it.depth > skipBelow {
				continue
			}
			skipBelow = -1
		}
		if !fn(it.node) {
			skipBelow = it.depth
		}
	}
}

// NodeAt returns the deepest node whose byte range contains offset. It
// returns the root when no child covers the offset.
func (t *Tree) NodeAt(offset int) NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cur := t.root
	for {
		next := NodeID{}
		for _, c := range t.slots[cur.Index].children {
			s := &t.slots[c.Index]
			if offset >= s.start && offset < s.end {
				next = c
				break
			}
		}
		if next.IsZero() {
			return cur
		}
		cur = next
	}
}

// Spec exports the live tree as a detached spec, which callers may edit and
// hand back to Sync.
func (t *Tree) Spec() *Spec {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exportLocked(t.root)
}

func (t *Tree) exportLocked(id NodeID) *Spec {
	s := &t.slots[id.Index]
	out := &Spec{Kind: s.kind, Text: s.text, Start: s.start, End: s.end}
	for _, c := range s.children {
		out.Children = append(out.Children, t.exportLocked(c))
	}
	return out
}

func (t *Tree) alloc(spec *Spec, parent NodeID) NodeID {
	var id NodeID
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		id = NodeID{Index: idx, Gen: t.slots[idx].gen}
	} else {
		t.slots = append(t.slots, slot{gen: 1})
		id = NodeID{Index: uint32(len(t.slots) - 1), Gen: 1}
	}
	s := &t.slots[id.Index]
	s.live = true
	s.kind = spec.Kind
	s.text = spec.Text
	s.start, s.end = spec.Start, spec.End
	s.parent = parent
	s.children = nil
	if len(spec.Children) > 0 {
		children := make([]NodeID, 0, len(spec.Children))
		for _, c := range spec.Children {
			children = append(children, t.alloc(c, id))
		}
		// alloc may grow t.slots, so re-index before writing.
		t.slots[id.Index].children = children
	}
	return id
}

func (t *Tree) retire(id NodeID) {
	s := &t.slots[id.Index]
	children := s.children
	s.live = false
	s.gen++
	s.children = nil
	s.parent = NodeID{}
	s.text = ""
	t.free = append(t.free, id.Index)
	for _, c := range children {
		t.retire(c)
	}
}
