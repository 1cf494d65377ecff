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

// Package space implements the four parallel address/name spaces a
// protection domain owns (spec §3, §4.2): host memory (HPT), guest
// memory (EPT), I/O ports, and object capabilities. Each wraps an
// pkg/mdb.Tree and the physical resource table it describes.
package space

import (
	"fmt"

	"github.com/tfc/hedron/pkg/crd"
	"github.com/tfc/hedron/pkg/mdb"
	"github.com/tfc/hedron/pkg/status"
	"github.com/tfc/hedron/pkg/sync"
)

// Kind identifies one of the four subspace types.
type Kind int

const (
	HostMem Kind = iota
	GuestMem
	IOPort
	Object
)

func (k Kind) String() string {
	switch k {
	case HostMem:
		return "host-mem"
	case GuestMem:
		return "guest-mem"
	case IOPort:
		return "io-port"
	case Object:
		return "object"
	default:
		return "invalid"
	}
}

// CPUSet is a bitmap of CPU ids, used to track which CPUs might hold a
// stale TLB entry for a PD's mapping (spec §4.2 "Stale-TLB tracking").
type CPUSet struct {
	mu   sync.Spinlock
	bits []uint64
}

func (s *CPUSet) ensure(cpu int) {
	need := cpu/64 + 1
	for len(s.bits) < need {
		s.bits = append(s.bits, 0)
	}
}

// Set marks cpu as potentially holding a stale entry.
func (s *CPUSet) Set(cpu int) {
	defer sync.Guard(&s.mu)()
	s.ensure(cpu)
	s.bits[cpu/64] |= 1 << uint(cpu%64)
}

// Check reports whether cpu is marked, without clearing it.
func (s *CPUSet) Check(cpu int) bool {
	defer sync.Guard(&s.mu)()
	if cpu/64 >= len(s.bits) {
		return false
	}
	return s.bits[cpu/64]&(1<<uint(cpu%64)) != 0
}

// ClearAndCheck clears cpu's bit and reports whether it had been set —
// the single atomic-with-respect-to-this-CPU operation
// Ec::do_deferred_nmi_work performs ("if stale bit set, clear it and
// flush").
func (s *CPUSet) ClearAndCheck(cpu int) bool {
	defer sync.Guard(&s.mu)()
	if cpu/64 >= len(s.bits) {
		return false
	}
	mask := uint64(1) << uint(cpu%64)
	was := s.bits[cpu/64]&mask != 0
	s.bits[cpu/64] &^= mask
	return was
}

// All returns every CPU id currently marked, used by the shootdown
// initiator to know which CPUs to NMI.
func (s *CPUSet) All() []int {
	defer sync.Guard(&s.mu)()
	var out []int
	for w, word := range s.bits {
		for b := 0; b < 64; b++ {
			if word&(1<<uint(b)) != 0 {
				out = append(out, w*64+b)
			}
		}
	}
	return out
}

// Cleanup is a token describing which CPUs need TLB invalidation after a
// mapping update. It must be explicitly consumed via Flush or Ignore so
// that bulk operations (spec §4.2: "initial load of the root task") can
// coalesce flushes instead of shooting down after every single insert.
type Cleanup struct {
	space     *Space
	cpus      []int
	consumed  bool
}

// Flush issues TLB shootdown to every CPU named in the token. Shootdown
// is implemented by the caller-supplied shootdown function (wired by the
// kernel package, which owns the per-CPU NMI machinery); Space itself
// only tracks which CPUs are owed one.
func (c *Cleanup) Flush(shootdown func(cpu int)) {
	if c.consumed {
		panic("space: Cleanup used twice")
	}
	c.consumed = true
	for _, cpu := range c.cpus {
		shootdown(cpu)
	}
}

// Ignore discards the token without flushing, for callers that know the
// PD has never run on any CPU yet (e.g. root task ELF loading, per
// original_source/src/ec.cpp's root_invoke: "we do not need to TLB flush
// here").
func (c *Cleanup) Ignore() {
	if c.consumed {
		panic("space: Cleanup used twice")
	}
	c.consumed = true
}

// Space is one of a PD's four subspaces: an MDB tree plus the physical
// resource table it describes, and (for memory subspaces) the set of
// CPUs that may have stale TLB entries.
type Space struct {
	Kind Kind
	tree mdb.Tree

	// stale tracks, for memory subspaces, which CPUs have run this PD
	// and so may cache translations that a later unmap must shoot down.
	stale CPUSet

	// unmap detaches a removed node from the kind-specific backing
	// resource: HPT/EPT page frames, the I/O bitmap, or the object
	// pointer table. That resource is opaque to Space; New installs the
	// hook, which knows how to interpret Owner payloads stored in MDB
	// nodes.
	unmap func(mdb.Node)
}

// New constructs a Space of the given kind. unmap is called once per
// node removed by Revoke, to detach that range from the physical
// table the kind describes (HPT PTEs, EPT PTEs, I/O bitmap bits, or the
// object table slot) — it is the template-method hook that lets one
// Space type serve all four kinds without a switch on Kind in the hot
// path.
func New(kind Kind, unmap func(mdb.Node)) *Space {
	if unmap == nil {
		unmap = func(mdb.Node) {}
	}
	return &Space{Kind: kind, unmap: unmap}
}

// Insert places a mapping v -> p (p is opaque: a physical frame number,
// I/O port, or object pointer depending on Kind) with the given attrs
// at the given order, donor-linked to donor if this is a delegation
// (donor == mdb.NodeID zero value means "not delegated").
func (s *Space) Insert(v uint64, owner any, attrs crd.Attr, order uint, donor mdb.NodeID) (mdb.NodeID, error) {
	id, err := s.tree.Insert(mdb.Node{
		Base:  v,
		Order: uint64(order),
		Attr:  uint32(attrs),
		Type:  uint32(s.Kind),
		Donor: donor,
		Owner: owner,
	})
	if err != nil {
		return 0, status.New(status.OOM, err.Error())
	}
	return id, nil
}

// Lookup returns the mapping covering v, if any.
func (s *Space) Lookup(v uint64) (owner any, attrs crd.Attr, ok bool) {
	_, n, found := s.tree.Lookup(v, false)
	if !found {
		return nil, 0, false
	}
	return n.Owner, crd.Attr(n.Attr), true
}

// Tree exposes the underlying MDB tree for the rare callers (revocation,
// delegation) that need node identities rather than a single lookup.
func (s *Space) Tree() *mdb.Tree { return &s.tree }

// MarkRanCPU records that cpu has loaded this space's table (e.g. a PD
// context-switched onto it), so future unmaps know to shoot it down.
func (s *Space) MarkRanCPU(cpu int) {
	s.stale.Set(cpu)
}

// ConsumeStale clears cpu's stale bit and reports whether it had been
// set, the single operation Ec::do_deferred_nmi_work performs per space
// (spec §4.7 "Deferred NMI work").
func (s *Space) ConsumeStale(cpu int) bool {
	return s.stale.ClearAndCheck(cpu)
}

// Revoke removes node id and everything donor-linked to it, detaching
// each from the physical table via the Space's unmap hook, and returns
// a Cleanup token naming every CPU that ran this space and so must be
// TLB-shot-down before the caller can consider the revocation complete.
func (s *Space) Revoke(id mdb.NodeID) *Cleanup {
	revoked := s.tree.Revoke(id)
	for _, r := range revoked {
		s.unmap(r.Node)
	}
	if len(revoked) == 0 {
		return &Cleanup{space: s}
	}
	return &Cleanup{space: s, cpus: s.stale.All()}
}

// String implements fmt.Stringer for diagnostics.
func (s *Space) String() string {
	return fmt.Sprintf("Space(%s)", s.Kind)
}
