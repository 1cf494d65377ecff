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

// Package crd defines the Capability Range Descriptor, the wire format
// delegation and revocation use to name a naturally aligned region of a
// subspace (spec §6, §GLOSSARY).
package crd

// Kind selects which of the four subspaces a Crd addresses.
type Kind uint8

const (
	// MEM addresses the host-memory or guest-memory subspace depending
	// on context (a single Crd.Kind of MEM is disambiguated by which
	// Space it is applied to).
	MEM Kind = iota
	// IO addresses the I/O-port subspace.
	IO
	// OBJ addresses the object (capability) subspace.
	OBJ
)

func (k Kind) String() string {
	switch k {
	case MEM:
		return "MEM"
	case IO:
		return "IO"
	case OBJ:
		return "OBJ"
	default:
		return "INVALID"
	}
}

// Attr is a bitmask of permission/attribute bits. The low bits are
// shared across kinds (R/W/X-like); OBJ nodes carry a capability's
// permission bits in this field instead (kernel.Pd.InstallCapability).
type Attr uint32

const (
	AttrR Attr = 1 << iota
	AttrW
	AttrX
	AttrIO
	AttrS // source/donor side, used internally during delegation bookkeeping
)

// Crd names the naturally aligned region [Base<<PageShift,
// (Base+1<<Order)<<PageShift) of a Kind subspace, with attrs describing
// the rights being granted.
type Crd struct {
	Kind  Kind
	Base  uint64 // page-shifted base
	Order uint   // size is 1<<Order pages
	Attr  Attr
}

// IsNull reports whether c names the empty range, used as a sentinel the
// way the original kernel used Crd(0) to mean "no translate/delegate
// item present".
func (c Crd) IsNull() bool {
	return c.Kind == MEM && c.Base == 0 && c.Order == 0 && c.Attr == 0
}

// End returns the exclusive end of the range in the same page-shifted
// units as Base.
func (c Crd) End() uint64 {
	return c.Base + (uint64(1) << c.Order)
}

// Contains reports whether c's range fully covers [base, base+1<<order).
func (c Crd) Contains(base uint64, order uint) bool {
	return base >= c.Base && base+(uint64(1)<<order) <= c.End() && c.Kind != invalidKind
}

const invalidKind = Kind(255)

// Item is one typed transfer-item in a UTCB: either a capability
// translation (Xlt=true, receiver gets the same underlying mapping under
// a selector of its choosing) or a delegation (Xlt=false, receiver gets
// a new child mapping donor-linked to the sender's).
type Item struct {
	Region  Crd
	Hotspot uint64
	Xlt     bool
}
