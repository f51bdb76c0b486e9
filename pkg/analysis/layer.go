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

package analysis

import "github.com/kraklabs/inblock/pkg/syntax"

// Composite is one immutable layer stacked over a parent context: lookups
// for nodes inside Element go to the fresh context, everything else to the
// parent. Layers form a bounded linked list through Parent.
type Composite struct {
	depth   int
	element syntax.NodeID

	// children is the routing table, computed when the layer is built.
	children map[syntax.NodeID]struct{}

	fresh  Context
	parent Context

	parentDiagnostics []Diagnostic
	diagnostics       []Diagnostic
}

// Element is the scope whose fresh analysis this layer holds.
func (c *Composite) Element() syntax.NodeID { return c.element }

// Depth is the number of stacked layers, this one included.
func (c *Composite) Depth() int { return c.depth }

// Fresh is the element's own context.
func (c *Composite) Fresh() Context { return c.fresh }

// Parent is the context lookups outside the element fall through to.
func (c *Composite) Parent() Context { return c.parent }

// ParentDiagnostics are the parent's diagnostics that lie outside the element.
func (c *Composite) ParentDiagnostics() []Diagnostic {
	return append([]Diagnostic(nil), c.parentDiagnostics...)
}

// Routes reports whether node lookups are served by the fresh context.
func (c *Composite) Routes(node syntax.NodeID) bool {
	_, ok := c.children[node]
	return ok
}

func (c *Composite) Binding(node syntax.NodeID) (Binding, bool) {
	if c.Routes(node) {
		return c.fresh.Binding(node)
	}
	return c.parent.Binding(node)
}

func (c *Composite) Lookup(name string) (Binding, bool) {
	if b, ok := c.fresh.Lookup(name); ok {
		return b, true
	}
	return c.parent.Lookup(name)
}

// Keys is the union of the fresh keys and the parent keys outside the element.
func (c *Composite) Keys() []syntax.NodeID {
	seen := make(map[syntax.NodeID]struct{})
	var keys []syntax.NodeID
	for _, k := range c.fresh.Keys() {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for _, k := range c.parent.Keys() {
		if c.Routes(k) {
			continue
		}
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sortIDs(keys)
	return keys
}

func (c *Composite) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), c.diagnostics...)
}
