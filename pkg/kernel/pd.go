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

package kernel

import (
	"github.com/tfc/hedron/pkg/crd"
	"github.com/tfc/hedron/pkg/mdb"
	"github.com/tfc/hedron/pkg/space"
	"github.com/tfc/hedron/pkg/status"
)

// Pd is a Protection Domain: the root namespace owning the four parallel
// spaces (spec §3). PDs form an implicit delegation forest: Delegate
// records the donor PD's MDB node id on the child mapping it creates.
type Pd struct {
	Kobject

	HostMem  *space.Space
	GuestMem *space.Space
	IOPort   *space.Space
	Objects  *space.Space

	// Passthrough records whether this PD may touch MSRs, IRQs, and DMA
	// (spec §3).
	Passthrough bool
}

// NewPd constructs a PD owned by creator (nil for the kernel's own root
// PD) with the given passthrough permission.
func NewPd(creator *Pd, passthrough bool) *Pd {
	p := &Pd{Passthrough: passthrough}
	p.initKobject(TypePD, creator)
	p.HostMem = space.New(space.HostMem, nil)
	p.GuestMem = space.New(space.GuestMem, nil)
	p.IOPort = space.New(space.IOPort, nil)
	p.Objects = space.New(space.Object, nil)
	return p
}

// spaceByKind returns the Space of kind k.
func (p *Pd) spaceByKind(k space.Kind) *space.Space {
	switch k {
	case space.HostMem:
		return p.HostMem
	case space.GuestMem:
		return p.GuestMem
	case space.IOPort:
		return p.IOPort
	default:
		return p.Objects
	}
}

func crdKindToSpaceKind(ck crd.Kind, guest bool) space.Kind {
	switch ck {
	case crd.IO:
		return space.IOPort
	case crd.OBJ:
		return space.Object
	default:
		if guest {
			return space.GuestMem
		}
		return space.HostMem
	}
}

// Delegate transfers the range named by src (looked up in donor's
// matching subspace) into dst's matching subspace at the location named
// by dst's own Crd, donor-linked to the source node, per spec §4.4's
// delegate/xfer_items and §4.1's insert. guest selects EPT over HPT for
// MEM Crds. It returns the new node id, or a *status.Error: BAD_PAR if
// src does not name an exact existing node, OOM if the insert fails.
func (p *Pd) Delegate(donor *Pd, src crd.Crd, dstBase uint64, guest bool) (mdb.NodeID, error) {
	sk := crdKindToSpaceKind(src.Kind, guest)
	srcSpace := donor.spaceByKind(sk)
	dstSpace := p.spaceByKind(sk)

	srcTree := srcSpace.Tree()
	srcID, srcNode, ok := srcTree.Lookup(src.Base, false)
	if !ok || srcNode.Base != src.Base || srcNode.Order != uint64(src.Order) {
		return 0, status.New(status.BAD_PAR, "delegate: source range not found or not exact")
	}

	// A child may not receive more rights than its parent granted (spec
	// §3 MDB node invariant).
	attrs := crd.Attr(srcNode.Attr) & src.Attr

	id, err := dstSpace.Insert(dstBase, srcNode.Owner, attrs, src.Order, srcID)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// InstallCapability inserts obj into this PD's object space at sel with
// the given permission bits, so a later syscall naming sel can resolve
// it back via LookupCapability (spec §4.3 "Kernel object table", §6
// "CREATE_* ... under parent PD with permission bit PERM_OBJ_CREATION").
// Permission bits are carried in the MDB node's Attr field, reusing the
// same generic bitmask crd.Attr already uses for MEM/IO rights.
func (p *Pd) InstallCapability(sel uint64, obj Owner, perm Perm) (mdb.NodeID, error) {
	return p.Objects.Insert(sel, obj, crd.Attr(perm), 0, 0)
}

// LookupCapability resolves sel in this PD's object space into a
// Capability, the form CapabilityCast consumes.
func (p *Pd) LookupCapability(sel uint64) (Capability, bool) {
	owner, attrs, ok := p.Objects.Lookup(sel)
	if !ok {
		return Capability{}, false
	}
	o, ok := owner.(Owner)
	if !ok {
		return Capability{}, false
	}
	return Capability{Object: o, Perm: Perm(attrs), Type: o.TypeTag()}, true
}

// Revoke walks the MDB subtree rooted at the node naming c in space kind
// k and unmaps every descendant (spec §4.1 rev_crd). It returns the
// underlying Space's *space.Cleanup naming the CPUs to invalidate, or
// nil if no node covers base.
func (p *Pd) Revoke(k space.Kind, base uint64) *space.Cleanup {
	sp := p.spaceByKind(k)
	id, _, ok := sp.Tree().Lookup(base, false)
	if !ok {
		return nil
	}
	return sp.Revoke(id)
}
