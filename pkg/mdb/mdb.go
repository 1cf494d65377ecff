// Copyright 2024 The Hedron Authors.
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

// Package mdb implements the per-space Mapping Database: an ordered tree
// of (base, order) mappings supporting lookup, insert, remove, the
// addreg/delreg power-of-two decomposition, and recursive/iterative
// revocation (spec §4.1).
//
// Unlike the original kernel's pointer-chasing Mdb nodes, nodes live in a
// slice-backed arena indexed by NodeID (spec §3 "MDB donor-links create a
// DAG across spaces... represent as explicit parent/child indices into a
// per-space node arena"). This makes Tree.Revoke an iterative worklist
// instead of recursion, bounded by heap rather than goroutine stack.
package mdb

import (
	"fmt"

	"github.com/tfc/hedron/pkg/sync"
)

// NodeID indexes a Node within a Tree's arena. The zero value is never a
// valid node (slot 0 is reserved as a root sentinel), so NodeID(0) can
// double as "no node" alongside a separate ok bool where needed.
type NodeID uint32

const noNode NodeID = 0

// Node is one mapping in a space's tree: [Base, Base+1<<Order) at the
// given Attr/Type, optionally donor-linked to the node it was delegated
// from. Owner is an opaque payload the Space layer attaches (e.g. the
// physical frame number or object pointer); mdb never interprets it.
type Node struct {
	Base, Order uint64
	Attr, Type  uint32
	Donor       NodeID
	parent      NodeID
	children    []NodeID
	free        bool
	Owner       any
}

// End returns the exclusive end of the node's range.
func (n *Node) End() uint64 { return n.Base + (uint64(1) << n.Order) }

// Tree is one space's mapping database. The zero value is an empty,
// ready-to-use tree.
type Tree struct {
	mu    sync.Spinlock
	nodes []Node // index 0 is an unused sentinel
	roots []NodeID
}

func (t *Tree) ensureSentinel() {
	if len(t.nodes) == 0 {
		t.nodes = append(t.nodes, Node{free: true})
	}
}

func (t *Tree) alloc(n Node) NodeID {
	t.ensureSentinel()
	for i := 1; i < len(t.nodes); i++ {
		if t.nodes[i].free {
			n.free = false
			t.nodes[i] = n
			return NodeID(i)
		}
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// node returns a pointer into the arena. Callers must hold t.mu.
func (t *Tree) node(id NodeID) *Node {
	return &t.nodes[id]
}

// Lookup returns the id of the node covering idx, or ok=false if none
// does. If next is true and no node covers idx, Lookup instead returns
// the node with the smallest Base >= idx.
func (t *Tree) Lookup(idx uint64, next bool) (NodeID, *Node, bool) {
	defer sync.Guard(&t.mu)()
	return t.lookupLocked(idx, next)
}

func (t *Tree) lookupLocked(idx uint64, next bool) (NodeID, *Node, bool) {
	// Find the root-level range covering idx (siblings are disjoint by
	// construction, so at most one root can cover it), then descend into
	// whichever child covers idx at each level to find the narrowest
	// covering node.
	var bestNext NodeID
	var bestNextBase uint64
	haveNext := false

	siblings := t.roots
	var covering NodeID = noNode
	for {
		found := noNode
		for _, id := range siblings {
			n := t.node(id)
			if n.free {
				continue
			}
			if idx >= n.Base && idx < n.End() {
				found = id
				break
			}
			if next && n.Base >= idx && (!haveNext || n.Base < bestNextBase) {
				bestNext, bestNextBase, haveNext = id, n.Base, true
			}
		}
		if found == noNode {
			break
		}
		covering = found
		siblings = t.node(found).children
	}
	if covering != noNode {
		return covering, t.node(covering), true
	}
	if next && haveNext {
		return bestNext, t.node(bestNext), true
	}
	return noNode, nil, false
}

// overlaps reports whether [base, base+1<<order) intersects
// [n.Base, n.End()) without one fully containing the other at a
// compatible order (i.e. a true conflict rather than a parent/child
// relationship).
func overlaps(base uint64, order uint64, n *Node) bool {
	end := base + (uint64(1) << order)
	if end <= n.Base || base >= n.End() {
		return false
	}
	// Compatible iff one range is fully inside the other.
	if base >= n.Base && end <= n.End() {
		return false
	}
	if n.Base >= base && n.End() <= end {
		return false
	}
	return true
}

// Insert places n under its narrowest existing ancestor among roots, or
// as a new root if none covers it. It fails if n would overlap an
// existing sibling at an incompatible order.
func (t *Tree) Insert(n Node) (NodeID, error) {
	defer sync.Guard(&t.mu)()
	return t.insertLocked(n)
}

func (t *Tree) insertLocked(n Node) (NodeID, error) {
	parent, parentNode, found := t.findNarrowestAncestorLocked(n.Base, n.Order)
	siblings := t.roots
	if found {
		siblings = parentNode.children
	}
	for _, sid := range siblings {
		sn := t.node(sid)
		if sn.free {
			continue
		}
		if overlaps(n.Base, n.Order, sn) {
			return noNode, fmt.Errorf("mdb: insert [%#x,+%d) overlaps existing [%#x,+%d)",
				n.Base, n.Order, sn.Base, sn.Order)
		}
	}
	n.parent = noNode
	if found {
		n.parent = parent
	}
	id := t.alloc(n)
	// alloc may grow t.nodes, so parentNode is re-fetched rather than reused.
	container := &t.roots
	if found {
		container = &t.node(parent).children
	}
	*container = append(*container, id)
	// Re-parent any existing node that is actually a sub-range of the
	// newly inserted one (addreg can insert a coarse node after finer
	// ones existed transiently; in steady state this loop is a no-op).
	end := n.Base + uint64(1)<<n.Order
	kept := (*container)[:0]
	for _, sid := range *container {
		sn := t.node(sid)
		if sid != id && !sn.free && sn.Base >= n.Base && sn.End() <= end {
			sn.parent = id
			t.node(id).children = append(t.node(id).children, sid)
			continue
		}
		kept = append(kept, sid)
	}
	*container = kept
	return id, nil
}

// findNarrowestAncestorLocked returns the most specific existing node
// whose range fully contains [base, base+1<<order), if any.
func (t *Tree) findNarrowestAncestorLocked(base, order uint64) (NodeID, *Node, bool) {
	var best NodeID
	var bestNode *Node
	found := false
	var visit func(ids []NodeID)
	visit = func(ids []NodeID) {
		for _, id := range ids {
			n := t.node(id)
			if n.free {
				continue
			}
			if base >= n.Base && base+(uint64(1)<<order) <= n.End() {
				best, bestNode, found = id, n, true
				visit(n.children)
				return
			}
		}
	}
	visit(t.roots)
	return best, bestNode, found
}

// Remove detaches id from its parent (or the root list) and re-parents
// its children to its former parent, per spec §4.1.
func (t *Tree) Remove(id NodeID) {
	defer sync.Guard(&t.mu)()
	t.removeLocked(id)
}

func (t *Tree) removeLocked(id NodeID) {
	n := t.node(id)
	if n.free {
		return
	}
	parent := n.parent
	children := n.children
	if parent == noNode {
		t.removeFromSlice(&t.roots, id)
		t.roots = append(t.roots, children...)
	} else {
		pn := t.node(parent)
		t.removeFromSlice(&pn.children, id)
		pn.children = append(pn.children, children...)
	}
	for _, c := range children {
		t.node(c).parent = parent
	}
	*n = Node{free: true}
}

func (t *Tree) removeFromSlice(s *[]NodeID, id NodeID) {
	for i, v := range *s {
		if v == id {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return
		}
	}
}

// maxOrder returns the largest order such that a naturally aligned
// region of that order, starting at addr, both fits within size and
// respects addr's own alignment — the greedy decomposition addreg uses.
func maxOrder(addr, size uint64) uint64 {
	var o uint64
	for {
		next := o + 1
		blk := uint64(1) << next
		if addr%blk != 0 {
			break
		}
		if blk > size {
			break
		}
		o = next
	}
	return o
}

// AddReg decomposes [addr, addr+size) into naturally aligned power-of-two
// sub-ranges and inserts one node per sub-range, per spec §4.1.
func (t *Tree) AddReg(addr, size uint64, attr, typ uint32) []NodeID {
	defer sync.Guard(&t.mu)()
	var ids []NodeID
	for size > 0 {
		o := maxOrder(addr, size)
		id, err := t.insertLocked(Node{Base: addr, Order: o, Attr: attr, Type: typ})
		if err == nil {
			ids = append(ids, id)
		}
		step := uint64(1) << o
		addr += step
		size -= step
	}
	return ids
}

// DelReg removes the node containing addr and re-adds the flanking
// sub-ranges of its covered region with the same attr/type, per spec
// §4.1. It is a no-op if no node covers addr.
func (t *Tree) DelReg(addr uint64) {
	id, n, ok := func() (NodeID, Node, bool) {
		defer sync.Guard(&t.mu)()
		id, n, ok := t.lookupLocked(addr, false)
		if !ok {
			return noNode, Node{}, false
		}
		cp := *n
		t.removeLocked(id)
		return id, cp, true
	}()
	if !ok {
		return
	}
	base, last := n.Base, n.End()
	if addr > base {
		t.AddReg(base, addr-base, n.Attr, n.Type)
	}
	next := addr + 1
	if next < last {
		t.AddReg(next, last-next, n.Attr, n.Type)
	}
	_ = id
}

// Snapshot copies out the node at id for inspection, for callers (the
// Space layer, tests) that need its fields outside the lock.
func (t *Tree) Snapshot(id NodeID) (Node, bool) {
	defer sync.Guard(&t.mu)()
	n := t.node(id)
	if n.free {
		return Node{}, false
	}
	return *n, true
}

// RevokedNode is one node removed by Revoke, handed back to the caller
// (the Space layer) so it can unmap the range from the page table /
// I/O-bitmap / object table it backs and account TLB shootdown.
type RevokedNode struct {
	ID   NodeID
	Node Node
}

// Revoke removes root and every node donor-linked (directly or
// transitively) to it, using an iterative worklist rather than
// recursion (spec Design Notes: "recursive revocation becomes an
// iterative worklist over (space, node-id) pairs"). It is idempotent:
// revoking an already-removed id is a no-op. Returns the removed nodes
// in removal order (children before the donor they descend from is not
// guaranteed; callers that need a specific unmap order should sort by
// Order descending).
func (t *Tree) Revoke(root NodeID) []RevokedNode {
	defer sync.Guard(&t.mu)()
	n := t.node(root)
	if n.free {
		return nil
	}
	var out []RevokedNode
	work := []NodeID{root}
	// Collect the donor-subtree first (root plus everything donor-linked
	// to it, directly or transitively), independent of the parent/child
	// tree shape, then remove each collected node.
	seen := map[NodeID]bool{}
	var frontier []NodeID
	frontier = append(frontier, root)
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		for i := 1; i < len(t.nodes); i++ {
			nd := &t.nodes[i]
			if nd.free || seen[NodeID(i)] {
				continue
			}
			if nd.Donor == id {
				frontier = append(frontier, NodeID(i))
			}
		}
	}
	work = work[:0]
	for id := range seen {
		work = append(work, id)
	}
	for _, id := range work {
		nd := t.node(id)
		if nd.free {
			continue
		}
		out = append(out, RevokedNode{ID: id, Node: *nd})
		t.removeLocked(id)
	}
	return out
}

// Walk calls fn for every live node, in arena order, for tests and
// diagnostics. fn must not mutate the tree.
func (t *Tree) Walk(fn func(NodeID, Node)) {
	defer sync.Guard(&t.mu)()
	for i := 1; i < len(t.nodes); i++ {
		if !t.nodes[i].free {
			fn(NodeID(i), t.nodes[i])
		}
	}
}
