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

//go:build linux

package kvm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Vcpu wraps one KVM vCPU fd and its mmap'd kvm_run page. It satisfies
// pkg/kernel.VMCSHandle: Run drives one guest entry/exit cycle and
// returns the exit reason, the value kernel.Vcpu.Exit encodes as a
// dst-portal index so the IPC engine delivers it like any other
// exception (spec §3, §4.4 "Exception path").
type Vcpu struct {
	fd  int
	mem []byte
	run *runData
}

// Run implements kernel.VMCSHandle. It blocks in KVM_RUN until the guest
// exits back to userspace for any reason (HLT, I/O, MMIO, a triple
// fault, ...) and returns that reason as a plain uint64 so pkg/kernel
// never needs to import this package's ExitReason type.
func (v *Vcpu) Run() (uint64, error) {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(v.fd), kvmRun, 0)
	if errno != 0 {
		return 0, fmt.Errorf("kvm: KVM_RUN: %w", errno)
	}
	return uint64(v.run.reason()), nil
}

// Close unmaps the kvm_run page and closes the vCPU fd.
func (v *Vcpu) Close() error {
	if err := unix.Munmap(v.mem); err != nil {
		return err
	}
	return unix.Close(v.fd)
}

// SetRegs installs the general-purpose registers a freshly created
// Vcpu's root EC starts with (spec §4.6 "start... sets CS:IP, SP, and
// the hazard-clean register frame").
func (v *Vcpu) SetRegs(rip, rsp uint64) error {
	var r regs
	if err := v.getRegs(&r); err != nil {
		return err
	}
	r.RIP = rip
	r.RSP = rsp
	return v.setRegs(&r)
}

func (v *Vcpu) getRegs(r *regs) error {
	return ioctlPtr(v.fd, kvmGetRegs, unsafe.Pointer(r))
}

func (v *Vcpu) setRegs(r *regs) error {
	return ioctlPtr(v.fd, kvmSetRegs, unsafe.Pointer(r))
}

func (v *Vcpu) getSregs(s *sregs) error {
	return ioctlPtr(v.fd, kvmGetSregs, unsafe.Pointer(s))
}

func (v *Vcpu) setSregs(s *sregs) error {
	return ioctlPtr(v.fd, kvmSetSregs, unsafe.Pointer(s))
}

// EnterLongMode programs CR0/CR4/EFER and a flat 64-bit code/data
// segment pair, the minimal system-register state a guest needs before
// its first KVM_RUN to execute 64-bit code directly rather than
// starting in real mode (grounded on bobuhiro11-gokvm's CR0x.../CR4x...
// constants; spec is silent on guest boot protocol since that is a
// consumer's concern, not this core's, so this helper is offered but
// never called by pkg/kernel itself).
func (v *Vcpu) EnterLongMode(pageTableBase uint64) error {
	var s sregs
	if err := v.getSregs(&s); err != nil {
		return err
	}
	const (
		cr0PE = 1 << 0
		cr0PG = 1 << 31
		cr4PAE = 1 << 5
		eferLME = 1 << 8
		eferLMA = 1 << 10
	)
	s.cr3 = pageTableBase
	s.cr4 |= cr4PAE
	s.cr0 |= cr0PE | cr0PG
	s.efer |= eferLME | eferLMA

	flat := segment{base: 0, limit: 0xffffffff, present: 1, s: 1, g: 1}
	code := flat
	code.typ = 0xb
	code.l = 1
	code.selector = 8
	data := flat
	data.typ = 0x3
	data.selector = 16

	s.cs = code
	s.ds, s.es, s.fs, s.gs, s.ss = data, data, data, data, data

	return v.setSregs(&s)
}
