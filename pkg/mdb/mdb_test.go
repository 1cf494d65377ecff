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

package mdb

import "testing"

func countNodes(t *Tree) int {
	n := 0
	t.Walk(func(NodeID, Node) { n++ })
	return n
}

func TestAddRegDecomposesIntoPowerOfTwo(t *testing.T) {
	var tr Tree
	ids := tr.AddReg(0, 3, 1, 0) // size 3 decomposes as 2+1
	if len(ids) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(ids))
	}
	var total uint64
	tr.Walk(func(_ NodeID, n Node) {
		total += uint64(1) << n.Order
	})
	if total != 3 {
		t.Fatalf("expected total coverage 3, got %d", total)
	}
}

func TestAddRegThenDelRegReAddsFlanks(t *testing.T) {
	var tr Tree
	tr.AddReg(0, 16, 7, 0)
	before := countNodes(&tr)

	// Pick an address in the middle: delreg removes the [0,16) node and
	// re-adds its flanks [0,5) and [6,16), leaving 5 itself uncovered.
	tr.DelReg(5)
	if _, _, ok := tr.Lookup(5, false); ok {
		t.Fatalf("expected lookup(5) to miss after delreg removed it")
	}
	id, n, ok := tr.Lookup(4, false)
	if !ok {
		t.Fatalf("expected lookup(4) to find a re-added flanking node")
	}
	if n.Attr != 7 {
		t.Fatalf("expected attr preserved across delreg, got %d", n.Attr)
	}
	_ = id

	after := countNodes(&tr)
	if after < before {
		t.Fatalf("delreg should not shrink the node count: before=%d after=%d", before, after)
	}

	// Coverage of the flanks is preserved: every other address in [0,16)
	// still resolves.
	for addr := uint64(0); addr < 16; addr++ {
		if addr == 5 {
			continue
		}
		if _, _, ok := tr.Lookup(addr, false); !ok {
			t.Fatalf("address %d not covered after delreg re-added the flanks", addr)
		}
	}
}

func TestLookupNarrowestNode(t *testing.T) {
	var tr Tree
	parent, _ := tr.Insert(Node{Base: 0, Order: 4, Attr: 1}) // [0,16)
	child, err := tr.Insert(Node{Base: 0, Order: 2, Attr: 2, Donor: parent}) // [0,4)
	if err != nil {
		t.Fatalf("insert child: %v", err)
	}

	id, n, ok := tr.Lookup(1, false)
	if !ok || id != child {
		t.Fatalf("expected narrowest node (child) to cover addr 1, got id=%v ok=%v", id, ok)
	}
	if n.Attr != 2 {
		t.Fatalf("expected child attr 2, got %d", n.Attr)
	}

	id, _, ok = tr.Lookup(8, false)
	if !ok || id != parent {
		t.Fatalf("expected parent to cover addr 8, got id=%v ok=%v", id, ok)
	}
}

func TestInsertRejectsIncompatibleOverlap(t *testing.T) {
	var tr Tree
	if _, err := tr.Insert(Node{Base: 0, Order: 2}); err != nil { // [0,4)
		t.Fatalf("first insert: %v", err)
	}
	if _, err := tr.Insert(Node{Base: 2, Order: 2}); err == nil { // [2,6) overlaps but isn't nested
		t.Fatalf("expected overlap rejection")
	}
}

func TestRevokeCascadesThroughDonorChain(t *testing.T) {
	var tr Tree
	root, _ := tr.Insert(Node{Base: 0, Order: 0, Attr: 7})
	child, _ := tr.Insert(Node{Base: 100, Order: 0, Donor: root})
	grandchild, _ := tr.Insert(Node{Base: 200, Order: 0, Donor: child})

	revoked := tr.Revoke(root)
	if len(revoked) != 3 {
		t.Fatalf("expected 3 nodes revoked (root, child, grandchild), got %d", len(revoked))
	}
	for _, id := range []NodeID{root, child, grandchild} {
		if _, ok := tr.Snapshot(id); ok {
			t.Fatalf("node %v should have been removed by revoke", id)
		}
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	var tr Tree
	root, _ := tr.Insert(Node{Base: 0, Order: 0})
	first := tr.Revoke(root)
	second := tr.Revoke(root)
	if len(first) != 1 {
		t.Fatalf("expected 1 node on first revoke, got %d", len(first))
	}
	if len(second) != 0 {
		t.Fatalf("expected revoke of an already-removed node to be a no-op, got %d", len(second))
	}
}

func TestRemoveReparentsChildren(t *testing.T) {
	var tr Tree
	parent, _ := tr.Insert(Node{Base: 0, Order: 4})
	child, _ := tr.Insert(Node{Base: 0, Order: 2})

	tr.Remove(parent)

	// The child should still be reachable from the root list now.
	id, _, ok := tr.Lookup(1, false)
	if !ok || id != child {
		t.Fatalf("expected child to be reparented to root after parent removal")
	}
}
