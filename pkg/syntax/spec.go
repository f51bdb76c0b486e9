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

// Spec is a detached description of a syntax subtree. Front ends produce
// specs; a Tree materializes them and diffs new specs against its live nodes.
type Spec struct {
	Kind Kind

	// Text is the source text of a leaf. Inner nodes leave it empty.
	Text string

	// Start and End are byte offsets into the source (End exclusive).
	Start int
	End   int

	Children []*Spec
}

// NewNode returns an inner spec node.
func NewNode(kind Kind, children ...*Spec) *Spec {
	return &Spec{Kind: kind, Children: children}
}

// NewLeaf returns a leaf spec node carrying source text.
func NewLeaf(kind Kind, text string) *Spec {
	return &Spec{Kind: kind, Text: text}
}

// IsLeaf reports whether the spec has no children.
func (s *Spec) IsLeaf() bool {
	return len(s.Children) == 0
}

// Clone returns a deep copy.
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	c := &Spec{Kind: s.Kind, Text: s.Text, Start: s.Start, End: s.End}
	if len(s.Children) > 0 {
		c.Children = make([]*Spec, len(s.Children))
		for i, child := range s.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// At follows child indexes from s. It returns nil when an index is out of range.
func (s *Spec) At(path ...int) *Spec {
	cur := s
	for _, i := range path {
		if cur == nil || i < 0 || i >= len(cur.Children) {
			return nil
		}
		cur = cur.Children[i]
	}
	return cur
}

// Find returns the first node in pre-order for which match returns true.
func (s *Spec) Find(match func(*Spec) bool) *Spec {
	if s == nil {
		return nil
	}
	if match(s) {
		return s
	}
	for _, child := range s.Children {
		if found := child.Find(match); found != nil {
			return found
		}
	}
	return nil
}

// FindDecl returns the first declaration of the given kind whose name
// identifier reads name.
func (s *Spec) FindDecl(kind Kind, name string) *Spec {
	return s.Find(func(n *Spec) bool {
		return n.Kind == kind && n.DeclName() == name
	})
}

// DeclName returns the text of the first identifier directly under the
// node, looking through a Variable child for properties.
func (s *Spec) DeclName() string {
	for _, child := range s.Children {
		switch child.Kind {
		case KindIdentifier:
			return child.Text
		case KindVariable:
			if name := child.DeclName(); name != "" {
				return name
			}
		}
	}
	return ""
}
