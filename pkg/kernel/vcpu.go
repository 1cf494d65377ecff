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

// Vcpu is a Virtual CPU: extended EC state backed by a hardware VMCS
// (spec §3). It embeds an Ec so the IPC engine's portal/continuation
// machinery applies unmodified to VM exits — the VM-exit reason is
// encoded into Ec.Regs.DstPortal exactly as a portal id would be.
type Vcpu struct {
	Ec

	// VMCS is the hardware-backed VM control structure. It is modeled as
	// an opaque handle from pkg/platform/kvm rather than reimplemented
	// here: programming a real VMCS is architecture-fixed state outside
	// this core (spec §1).
	VMCS VMCSHandle
}

// VMCSHandle is satisfied by pkg/platform/kvm's vCPU wrapper. Kept as a
// narrow interface here so pkg/kernel does not import pkg/platform/kvm
// (the dependency points the other way: platform/kvm constructs
// Vcpus, not vice versa).
type VMCSHandle interface {
	Run() (exitReason uint64, err error)
	Close() error
}

// NewVcpu constructs a Vcpu bound to the given VMCS handle. It is
// always a local EC (Glb=false): a VM exit is delivered the same way a
// portal call is, as a server invocation driven by the guest's own
// donated time (spec §3 "carries the VM-exit reason encoded as a
// dst-portal index so exits reuse the IPC engine").
func NewVcpu(owner *Pd, cpu int, evt uint64, vmcs VMCSHandle) *Vcpu {
	v := &Vcpu{VMCS: vmcs}
	v.Ec = *NewLocalEc(owner, cpu, evt)
	v.Type = TypeVCPU
	return v
}

// Exit records a VM exit's reason into the Vcpu's register frame and
// installs the send_msg<ret_user_vmresume> continuation, so the next
// CPU.ReturnToUser dispatch delivers it through the IPC engine exactly
// like an exception (spec §4.4 "Exception path").
func (v *Vcpu) Exit(reason uint64) {
	v.Regs.DstPortal = reason
	v.Cont = sendMsg(SendVMExit)
}
