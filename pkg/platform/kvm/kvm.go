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

// Package kvm backs a VCPU's VMCS with a real Linux KVM virtual machine,
// satisfying pkg/kernel's VMCSHandle interface (spec §1 "hardware-fixed
// state... modeled as an opaque handle"). It is this core's one piece of
// genuinely platform-specific code: everything above this package talks
// to Run/Close, never to /dev/kvm directly.
package kvm

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// VM owns one /dev/kvm virtual machine: the address space every Vcpu
// created from it runs against (mirrors gvisor's kvm.KVM wrapping one
// machine fd, and NOVA's one-VM-per-host-instance model).
type VM struct {
	fd           int
	mmapSize     uintptr
	mu           sync.Mutex
	nextSlot     uint32
}

// Open opens /dev/kvm and creates a new VM context. It fails loudly if
// the host has no KVM support; this core never falls back to a software
// emulator (spec §1 "this is not an emulator").
func Open() (*VM, error) {
	fd, err := unix.Open("/dev/kvm", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("kvm: opening /dev/kvm: %w", err)
	}

	version, err := ioctlNoArg(fd, kvmGetAPIVersion)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: KVM_GET_API_VERSION: %w", err)
	}
	if version != 12 {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: unsupported API version %d (want 12)", version)
	}

	vmFD, err := ioctlNoArg(fd, kvmCreateVM)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: KVM_CREATE_VM: %w", err)
	}
	unix.Close(fd)

	mmapSize, err := ioctlNoArg(vmFD, kvmGetVCPUMmapSize)
	if err != nil {
		unix.Close(vmFD)
		return nil, fmt.Errorf("kvm: KVM_GET_VCPU_MMAP_SIZE: %w", err)
	}

	return &VM{fd: vmFD, mmapSize: uintptr(mmapSize)}, nil
}

// MapMemory installs a guest-physical region backed by the host virtual
// range [hostAddr, hostAddr+size), the KVM half of what pkg/space's
// GuestMem EPT tree describes (spec §3 "guest-mem"). Each call claims a
// fresh slot; this core never needs to unmap a slot once installed.
func (vm *VM) MapMemory(guestPhysAddr, hostAddr, size uint64) error {
	vm.mu.Lock()
	slot := vm.nextSlot
	vm.nextSlot++
	vm.mu.Unlock()

	region := userMemoryRegion{
		Slot:          slot,
		GuestPhysAddr: guestPhysAddr,
		MemorySize:    size,
		UserspaceAddr: hostAddr,
	}
	if err := ioctlPtr(vm.fd, kvmSetUserMemoryRegion, unsafe.Pointer(&region)); err != nil {
		return fmt.Errorf("kvm: KVM_SET_USER_MEMORY_REGION: %w", err)
	}
	return nil
}

// CreateVcpu creates VCPU id and returns a handle satisfying
// kernel.VMCSHandle. id must match the Ec.CPU a Vcpu capability is
// created on (spec §6 "CREATE_VCPU... pinned to the named CPU").
func (vm *VM) CreateVcpu(id int) (*Vcpu, error) {
	fd, err := ioctlArg(vm.fd, kvmCreateVCPU, uintptr(id))
	if err != nil {
		return nil, fmt.Errorf("kvm: KVM_CREATE_VCPU(%d): %w", id, err)
	}

	mem, err := unix.Mmap(fd, 0, int(vm.mmapSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: mmap kvm_run: %w", err)
	}

	return &Vcpu{
		fd:  fd,
		mem: mem,
		run: (*runData)(unsafe.Pointer(&mem[0])),
	}, nil
}

// Close tears down the VM fd. Vcpus created from it must be closed
// separately first.
func (vm *VM) Close() error {
	return unix.Close(vm.fd)
}

func ioctlNoArg(fd int, req uintptr) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

func ioctlArg(fd int, req uintptr, arg uintptr) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

func ioctlPtr(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
