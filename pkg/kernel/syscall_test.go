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
	"testing"

	"github.com/tfc/hedron/pkg/status"
)

// TestSysCreateECBadCPU is spec §8 scenario 6: sys_create_ec naming an
// offline CPU must fail with BAD_CPU rather than creating an EC no CPU
// will ever drive.
func TestSysCreateECBadCPU(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	next := cpu.Dispatch(SysCreateEC, nil, SysArgs{ParentPD: pd, CPU: 7, Sel: 1})
	if next.Kind != ContSysFinish || next.Status != status.BAD_CPU {
		t.Fatalf("sys_create_ec on offline CPU: got %+v, want SysFinish(BAD_CPU)", next)
	}
}

// TestSysCreateECBadParUnalignedEvt is spec §8 scenario 6: an event base
// not aligned to the page size is rejected with BAD_PAR.
func TestSysCreateECBadParUnalignedEvt(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	next := cpu.Dispatch(SysCreateEC, nil, SysArgs{ParentPD: pd, CPU: 0, Evt: 1, Sel: 1})
	if next.Kind != ContSysFinish || next.Status != status.BAD_PAR {
		t.Fatalf("sys_create_ec with unaligned Evt: got %+v, want SysFinish(BAD_PAR)", next)
	}
}

// TestSysCreateECBadCapNoParent is spec §8 scenario 6: a CREATE_* call
// with no parent PD resolved (the capability argument didn't name a PD)
// fails with BAD_CAP.
func TestSysCreateECBadCapNoParent(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)

	next := cpu.Dispatch(SysCreateEC, nil, SysArgs{CPU: 0, Sel: 1})
	if next.Kind != ContSysFinish || next.Status != status.BAD_CAP {
		t.Fatalf("sys_create_ec with no parent PD: got %+v, want SysFinish(BAD_CAP)", next)
	}
}

// TestSysCreateECGlobalVsLocal checks that PermObjCreation picks the
// global-EC constructor and its absence the local-EC one (spec §6
// "CREATE_EC").
func TestSysCreateECGlobalVsLocal(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	next := cpu.Dispatch(SysCreateEC, nil, SysArgs{ParentPD: pd, CPU: 0, Sel: 1, Perm: PermObjCreation})
	if next.Kind != ContSysFinish || next.Status != status.SUCCESS {
		t.Fatalf("sys_create_ec global: got %+v, want SysFinish(SUCCESS)", next)
	}
	owner, _, ok := pd.Objects.Lookup(1)
	if !ok {
		t.Fatalf("sys_create_ec: no capability installed at selector 1")
	}
	ec, ok := owner.(*Ec)
	if !ok || !ec.Glb {
		t.Fatalf("sys_create_ec with PermObjCreation: expected a global EC, got %+v", owner)
	}

	next = cpu.Dispatch(SysCreateEC, nil, SysArgs{ParentPD: pd, CPU: 0, Sel: 2})
	if next.Kind != ContSysFinish || next.Status != status.SUCCESS {
		t.Fatalf("sys_create_ec local: got %+v, want SysFinish(SUCCESS)", next)
	}
	owner, _, ok = pd.Objects.Lookup(2)
	if !ok {
		t.Fatalf("sys_create_ec: no capability installed at selector 2")
	}
	ec, ok = owner.(*Ec)
	if !ok || ec.Glb {
		t.Fatalf("sys_create_ec without PermObjCreation: expected a local EC, got %+v", owner)
	}
}

// TestSysCallBadCapWrongType checks that Dispatch(SysCall, ...) rejects
// a capability that doesn't name a Pt, or one without PermCall, with
// BAD_CAP (spec §4.3 "CapabilityCast").
func TestSysCallBadCapWrongType(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	notAPt := NewGlobalEc(pd, 0, 0)
	next := cpu.Dispatch(SysCall, nil, SysArgs{Cap: Capability{Object: notAPt, Perm: PermAll, Type: TypeEC}})
	if next.Kind != ContSysFinish || next.Status != status.BAD_CAP {
		t.Fatalf("sys_call on non-Pt capability: got %+v, want SysFinish(BAD_CAP)", next)
	}

	server := NewLocalEc(pd, 0, 0)
	pt := NewPt(pd, server, 0x1000, MtdAll, 1)
	next = cpu.Dispatch(SysCall, nil, SysArgs{Cap: Capability{Object: pt, Perm: 0, Type: TypePT}})
	if next.Kind != ContSysFinish || next.Status != status.BAD_CAP {
		t.Fatalf("sys_call without PermCall: got %+v, want SysFinish(BAD_CAP)", next)
	}
}

// TestSysECCtrlRaisesRecallAndRemoteSchedHazard checks sys_ec_ctrl's
// recall sub-op (spec §5 "Cancellation"): it sets HZD_RECALL on the
// target EC unconditionally, and HZD_SCHED on the target's owning CPU
// only when that CPU differs from the one issuing the recall.
func TestSysECCtrlRaisesRecallAndRemoteSchedHazard(t *testing.T) {
	k := newTestKernel(2)
	pd := NewPd(k.Root, false)

	local := NewGlobalEc(pd, 0, 0)
	next := k.CPU(0).Dispatch(SysECCtrl, nil, SysArgs{Cap: Capability{Object: local, Perm: PermCtrl, Type: TypeEC}})
	if next.Kind != ContSysFinish || next.Status != status.SUCCESS {
		t.Fatalf("sys_ec_ctrl local: got %+v, want SysFinish(SUCCESS)", next)
	}
	if local.Regs.Hazard()&HzdRecall == 0 {
		t.Fatalf("sys_ec_ctrl: expected HZD_RECALL set on target EC")
	}
	if got := k.CPU(0).Hazard().Load() & HzdSched; got != 0 {
		t.Fatalf("sys_ec_ctrl on local EC must not raise HZD_SCHED on the issuing CPU itself")
	}

	remote := NewGlobalEc(pd, 1, 0)
	next = k.CPU(0).Dispatch(SysECCtrl, nil, SysArgs{Cap: Capability{Object: remote, Perm: PermCtrl, Type: TypeEC}})
	if next.Kind != ContSysFinish || next.Status != status.SUCCESS {
		t.Fatalf("sys_ec_ctrl remote: got %+v, want SysFinish(SUCCESS)", next)
	}
	if remote.Regs.Hazard()&HzdRecall == 0 {
		t.Fatalf("sys_ec_ctrl: expected HZD_RECALL set on remote target EC")
	}
	if got := k.CPU(1).Hazard().Load() & HzdSched; got == 0 {
		t.Fatalf("sys_ec_ctrl across CPUs: expected HZD_SCHED raised on the target's own CPU")
	}
}

// TestSysAssignPCIRequiresPassthrough checks spec §6's passthrough gate:
// a PD without Passthrough cannot assign a PCI device even if a Pci
// collaborator is wired in.
func TestSysAssignPCIRequiresPassthrough(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	next := cpu.Dispatch(SysAssignPCI, nil, SysArgs{ParentPD: pd, BDF: 0x100})
	if next.Kind != ContSysFinish || next.Status != status.BAD_FTR {
		t.Fatalf("sys_assign_pci without passthrough: got %+v, want SysFinish(BAD_FTR)", next)
	}
}

// TestDispatchUnknownHypercall checks the default case: an id outside
// the enumerated Hypercall range returns BAD_HYP rather than panicking.
func TestDispatchUnknownHypercall(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)

	next := cpu.Dispatch(Hypercall(255), nil, SysArgs{})
	if next.Kind != ContSysFinish || next.Status != status.BAD_HYP {
		t.Fatalf("Dispatch with unknown hypercall id: got %+v, want SysFinish(BAD_HYP)", next)
	}
}
