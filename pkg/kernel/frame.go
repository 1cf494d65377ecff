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
	"github.com/tfc/hedron/pkg/status"
)

// Mtd is the Message-Transfer Descriptor: a bitmask selecting which
// register-frame groups an exception or VM-exit delivery carries into
// the UTCB (spec §5.3 expansion; original_source/src/syscall.cpp's
// recv_kern distinguishes load_exc vs load_vmx by these groups).
type Mtd uint32

const (
	MtdGPR Mtd = 1 << iota
	MtdSeg
	MtdCtrl
	MtdVec
	MtdAll = MtdGPR | MtdSeg | MtdCtrl | MtdVec
)

// Regs is the saved register frame of an EC: general-purpose registers
// relevant to the kernel (not modeled in full x86-64 width/breadth,
// since the real GPR set is an external, architecture-fixed concern),
// the instruction/stack pointer, and the fields the IPC/exception/VM-
// exit paths read and write.
type Regs struct {
	Rip, Rsp uint64
	Gpr      [8]uint64

	// DstPortal carries the portal id on a call, the exception vector
	// (looked up at Evt+vector) on an exception, or the VM-exit reason
	// on a VCPU exit — all three reuse
	// this one field, per spec §3 "VCPU... carries the VM-exit reason
	// encoded as a dst-portal index so exits reuse the IPC engine."
	DstPortal uint64

	Cr2 uint64 // faulting address, valid on a #PF exception
	Vec uint64 // exception vector, valid on exception delivery
	Err uint64 // exception error code

	Status status.Code
	Mtd    Mtd

	// hazard holds per-EC hazard bits (spec §4.6); most hazards are
	// per-CPU, but DS_ES/STEP/RECALL are meaningful per-EC.
	hazard uint64
}

// SetHazard ORs bits into the per-EC hazard word.
func (r *Regs) SetHazard(bits uint64) { r.hazard |= bits }

// ClearHazard clears bits from the per-EC hazard word.
func (r *Regs) ClearHazard(bits uint64) { r.hazard &^= bits }

// Hazard returns the current per-EC hazard bits.
func (r *Regs) Hazard() uint64 { return r.hazard }

// Utcb is the per-EC user thread control block: the single user page
// through which IPC items flow (spec §GLOSSARY, §6).
type Utcb struct {
	Xlt   crd.Crd
	Del   crd.Crd
	Items []crd.Item
	Mtd   Mtd

	// saved snapshot used by tests to assert "unchanged UTCB" round trips
	// (spec §8 round-trip law: a reply with identical UTCB contents
	// returns unchanged).
	Payload [64]byte
}

// Save copies this UTCB's contents into dst, as the sender side of
// recv_user does when a local EC receives a call.
func (u *Utcb) Save(dst *Utcb) {
	*dst = *u
}

// TypedCount reports how many typed items are present, i.e. whether a
// reply or call needs to invoke delegate (spec §4.4).
func (u *Utcb) TypedCount() int { return len(u.Items) }
