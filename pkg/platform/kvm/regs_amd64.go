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

//go:build linux && amd64

package kvm

// regs mirrors struct kvm_regs, the general-purpose register block KVM_GET_REGS/
// KVM_SET_REGS transfers.
type regs struct {
	RAX, RBX, RCX, RDX    uint64
	RSI, RDI, RSP, RBP    uint64
	R8, R9, R10, R11      uint64
	R12, R13, R14, R15    uint64
	RIP, RFLAGS           uint64
}

// segment mirrors struct kvm_segment, the expanded form of a segment
// register sregs carries.
type segment struct {
	base     uint64
	limit    uint32
	selector uint16
	typ      uint8
	present  uint8
	dpl      uint8
	db       uint8
	s        uint8
	l        uint8
	g        uint8
	avl      uint8
	unusable uint8
	_        uint8
}

// dtable mirrors struct kvm_dtable, used for the GDT and IDT pseudo-
// descriptors.
type dtable struct {
	base  uint64
	limit uint16
	_     [3]uint16
}

// sregs mirrors struct kvm_sregs, the system-register block KVM_GET_SREGS/
// KVM_SET_SREGS transfers: segment registers, descriptor tables, and the
// control/EFER registers a VMCS setup needs before the first KVM_RUN.
type sregs struct {
	cs, ds, es, fs, gs, ss segment
	tr, ldt                segment
	gdt, idt               dtable
	cr0, cr2, cr3, cr4, cr8 uint64
	efer                   uint64
	apicBase               uint64
	interruptBitmap        [(256 + 63) / 64]uint64
}
