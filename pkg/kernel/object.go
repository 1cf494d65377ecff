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

// Package kernel implements the kernel object table, IPC engine,
// scheduler, hazard/continuation discipline, and syscall dispatcher
// (spec §4.3-§4.8). It is the capability-typed core the rest of the
// repository (mdb, space, platform/kvm) is assembled into.
package kernel

import (
	"github.com/tfc/hedron/pkg/atomicbitops"
	"github.com/tfc/hedron/pkg/rcu"
)

// TypeTag identifies the kind of kernel object a Capability refers to,
// checked by CapabilityCast (spec §4.3).
type TypeTag uint8

const (
	TypeNone TypeTag = iota
	TypePD
	TypeEC
	TypeSC
	TypePT
	TypeSM
	TypeKP
	TypeVCPU
)

func (t TypeTag) String() string {
	switch t {
	case TypePD:
		return "PD"
	case TypeEC:
		return "EC"
	case TypeSC:
		return "SC"
	case TypePT:
		return "PT"
	case TypeSM:
		return "SM"
	case TypeKP:
		return "KP"
	case TypeVCPU:
		return "VCPU"
	default:
		return "NONE"
	}
}

// Perm is a permission bitmask carried by a Capability, orthogonal to
// the object's TypeTag.
type Perm uint32

const (
	PermObjCreation Perm = 1 << iota
	PermCtrl
	PermCall
	PermAll = ^Perm(0)
)

// Kobject is the embeddable base of every reference-counted, capability-
// typed kernel object (PD/EC/SC/PT/SM/KP/VCPU — spec §3 "Kernel object
// table"). Reclamation is deferred to an RCU callback so that a CPU
// racing a revocation with a stale pointer never observes a freed
// object (spec §5 "Ordering").
type Kobject struct {
	Type TypeTag
	refs atomicbitops.RefCount
	pd   *Pd // owning/creator PD, for accounting; may be nil for Pd itself
}

// initKobject must be called exactly once by each concrete object's
// constructor.
func (k *Kobject) initKobject(t TypeTag, owner *Pd) {
	k.Type = t
	k.pd = owner
	k.refs.Init(1)
}

// TypeTag implements Owner.
func (k *Kobject) TypeTag() TypeTag { return k.Type }

// IncRef adds a reference. Capability lookups that hand out a live
// pointer across a function boundary (rather than just within one
// locked section) should pair this with DecRef.
func (k *Kobject) IncRef() { k.refs.Inc() }

// decRefAndMaybeFree decrements the reference count and, if it reached
// zero, schedules free via domain once the current RCU grace period
// elapses — ensuring no CPU that looked the object up under the old MDB
// state is still dereferencing it (spec §3 "Lifecycles").
func (k *Kobject) decRefAndMaybeFree(domain *rcu.Domain, free func()) {
	if k.refs.Dec() {
		domain.Call(free)
	}
}

// Capability is a (object, permission, type) triple stored in an
// object-space MDB node's Owner field (spec §4.3).
type Capability struct {
	Object Owner
	Perm   Perm
	Type   TypeTag
}

// Owner is the minimal interface every kernel object satisfies, enough
// for Capability to carry it opaquely.
type Owner interface {
	TypeTag() TypeTag
}

// CapabilityCast yields a typed *T iff cap's type tag matches T and its
// permission bits cover required, else ok is false. T is inferred from
// the cast function supplied, since Go capability-casts a concrete type
// rather than a compile-time generic tag the way the original's
// template parameter did.
func CapabilityCast[T Owner](cap Capability, required Perm) (T, bool) {
	var zero T
	if cap.Perm&required != required {
		return zero, false
	}
	t, ok := cap.Object.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
