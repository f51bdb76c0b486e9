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

// =============================================================================
// STRUCTURAL DIFF
// =============================================================================
//
// Sync reconciles the live tree with a freshly parsed spec. Nodes that still
// match keep their IDs; mismatching runs of children are replaced. The parents
// whose child lists changed are reported as the touched nodes of the edit,
// which is what the change classifier consumes.

// Edit describes one atomic structural change to a tree.
type Edit struct {
	// Touched are the nodes whose children were replaced.
	Touched []NodeID

	// Formatting is set when only whitespace or comments changed (or nothing
	// but positions did).
	Formatting bool

	// Version is the tree version after the edit.
	Version uint64
}

// Sync diffs spec against the live tree and applies the difference.
// A root kind mismatch is handled as a Reset.
func (t *Tree) Sync(spec *Spec) (Edit, error) {
	if spec == nil {
		return Edit{}, ErrEmptySpec
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.slots[t.root.Index].kind != spec.Kind {
		return t.resetLocked(spec), nil
	}

	d := &differ{t: t, trivia: true}
	d.diff(t.root, spec)
	if len(d.touched) == 0 {
		return Edit{Formatting: true, Version: t.version}, nil
	}
	t.version++
	return Edit{Touched: d.touched, Formatting: d.trivia, Version: t.version}, nil
}

// Reset replaces the whole content below the root. The returned edit has no
// touched nodes, which classifiers treat as a whole-file change.
func (t *Tree) Reset(spec *Spec) (Edit, error) {
	if spec == nil {
		return Edit{}, ErrEmptySpec
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetLocked(spec), nil
}

func (t *Tree) resetLocked(spec *Spec) Edit {
	root := t.root
	for _, c := range t.slots[root.Index].children {
		t.retire(c)
	}
	s := &t.slots[root.Index]
	s.kind = spec.Kind
	s.text = spec.Text
	s.start, s.end = spec.Start, spec.End
	s.children = nil
	children := make([]NodeID, 0, len(spec.Children))
	for _, c := range spec.Children {
		children = append(children, t.alloc(c, root))
	}
	t.slots[root.Index].children = children
	t.version++
	return Edit{Version: t.version}
}

type differ struct {
	t       *Tree
	touched []NodeID
	trivia  bool
}

// matches reports whether an old node can be kept for a new spec node.
func (d *differ) matches(id NodeID, spec *Spec) bool {
	s := &d.t.slots[id.Index]
	if s.kind != spec.Kind {
		return false
	}
	oldLeaf := len(s.children) == 0
	if oldLeaf != spec.IsLeaf() {
		return false
	}
	return !oldLeaf || s.text == spec.Text
}

func (d *differ) diff(id NodeID, spec *Spec) {
	s := &d.t.slots[id.Index]
	s.start, s.end = spec.Start, spec.End
	if len(s.children) == 0 && spec.IsLeaf() {
		return
	}
	d.diffChildren(id, spec.Children)
}

func (d *differ) diffChildren(parent NodeID, specs []*Spec) {
	old := d.t.slots[parent.Index].children

	prefix := 0
	for prefix < len(old) && prefix < len(specs) && d.matches(old[prefix], specs[prefix]) {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(specs)-prefix &&
		d.matches(old[len(old)-1-suffix], specs[len(specs)-1-suffix]) {
		suffix++
	}

	for i := 0; i < prefix; i++ {
		d.diff(old[i], specs[i])
	}
	for i := 0; i < suffix; i++ {
		d.diff(old[len(old)-1-i], specs[len(specs)-1-i])
	}

	removed := old[prefix : len(old)-suffix]
	inserted := specs[prefix : len(specs)-suffix]
	if len(removed) == 0 && len(inserted) == 0 {
		return
	}

	d.touched = append(d.touched, parent)
	for _, r := range removed {
		if !d.t.slots[r.Index].kind.IsTrivia() {
			d.trivia = false
		}
	}
	for _, in := range inserted {
		if !in.Kind.IsTrivia() {
			d.trivia = false
		}
	}

	next := make([]NodeID, 0, len(specs))
	next = append(next, old[:prefix]...)
	for _, r := range removed {
		d.t.retire(r)
	}
	for _, in := range inserted {
		next = append(next, d.t.alloc(in, parent))
	}
	next = append(next, old[len(old)-suffix:]...)
	d.t.slots[parent.Index].children = next
}
