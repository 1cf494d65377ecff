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
	"time"
)

// TestSampleHazardsMasksDSESOnIret checks spec §4.6 step 5: ret_user_iret
// ignores HZD_DS_ES because IRET reloads segment selectors
// unconditionally, while ret_user_sysexit does not.
func TestSampleHazardsMasksDSESOnIret(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)
	ec := NewGlobalEc(pd, 0, 0)
	ec.Regs.SetHazard(HzdDSES)

	if got := sampleHazards(cpu, ec, RetIret); got&HzdDSES != 0 {
		t.Fatalf("sampleHazards(RetIret): HZD_DS_ES must be masked out, got %#x", got)
	}
	if got := sampleHazards(cpu, ec, RetSysexit); got&HzdDSES == 0 {
		t.Fatalf("sampleHazards(RetSysexit): HZD_DS_ES must be observed")
	}
}

// TestHandleHazardPrecedenceSchedBeforeRecall checks spec §4.6's fixed
// precedence: when both HZD_SCHED and HZD_RECALL are set, SCHED is
// serviced first and RECALL is left pending for the next sample once
// this EC is rescheduled.
func TestHandleHazardPrecedenceSchedBeforeRecall(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)
	ec := NewGlobalEc(pd, 0, 0)
	sc := NewSc(pd, ec, 0, 3, time.Millisecond)
	ec.Sc = sc
	cpu.Enqueue(sc)
	ec.Regs.SetHazard(HzdRecall)

	next := cpu.handleHazard(ec, HzdSched|HzdRecall, ToUser(RetSysexit))
	if cpu.Current() != ec {
		t.Fatalf("handleHazard(SCHED|RECALL): expected reschedule to pick the only ready EC, got current=%v", cpu.Current())
	}
	if ec.Regs.Hazard()&HzdRecall == 0 {
		t.Fatalf("handleHazard(SCHED|RECALL): RECALL must remain pending, SCHED alone was serviced")
	}
	_ = next
}

// TestHandleHazardRecallRedirectsSysexitToIret checks that a pending
// HZD_RECALL with no competing SCHED hazard delivers through the EC's
// event portal, clears the hazard bit, and redirects a sysexit-bound
// continuation to iret first (spec §4.6 step 3, "only iret frames carry
// room for synthesized exception delivery").
func TestHandleHazardRecallRedirectsSysexitToIret(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	handler := NewLocalEc(pd, 0, 0)
	evtBase := uint64(0x10000)
	pt := NewPt(pd, handler, 0x8000, MtdAll, 99)
	if _, err := pd.InstallCapability(evtBase+ExcRecall, pt, PermAll); err != nil {
		t.Fatalf("InstallCapability: %v", err)
	}

	ec := NewGlobalEc(pd, 0, 0)
	ec.Evt = evtBase
	ec.Regs.SetHazard(HzdRecall)

	next := cpu.handleHazard(ec, HzdRecall, ToUser(RetSysexit))
	if ec.Regs.Hazard()&HzdRecall != 0 {
		t.Fatalf("handleHazard(RECALL): hazard bit must be cleared once delivery starts")
	}
	if handler.Regs.DstPortal != pt.Id {
		t.Fatalf("handleHazard(RECALL): handler EC's DstPortal = %d, want %d", handler.Regs.DstPortal, pt.Id)
	}
	if next.Kind != ContRecvKern {
		t.Fatalf("handleHazard(RECALL): expected the handler activated via ContRecvKern, got %v", next.Kind)
	}
	if cpu.Current() != handler {
		t.Fatalf("handleHazard(RECALL): expected handler EC activated, got current=%v", cpu.Current())
	}
	if ec.Cont.Kind != ContToUser || ec.Cont.Mode != RetIret {
		t.Fatalf("handleHazard(RECALL): recalled EC's resume continuation = %+v, want ToUser(RetIret)", ec.Cont)
	}
}

// TestHandleHazardRCUAlwaysQuietsBeforeOthers checks that HZD_RCU is
// serviced (the CPU reports quiescence, which on a one-CPU kernel
// advances the RCU epoch) regardless of which other hazard bits
// accompany it, without itself short-circuiting the rest of the
// precedence chain the way SCHED does.
func TestHandleHazardRCUAlwaysQuietsBeforeOthers(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)
	ec := NewGlobalEc(pd, 0, 0)
	ec.Regs.SetHazard(HzdDSES)
	before := k.RCU.Epoch()

	next := cpu.handleHazard(ec, HzdRCU|HzdDSES, ToUser(RetSysexit))
	if got := k.RCU.Epoch(); got <= before {
		t.Fatalf("handleHazard(RCU|DS_ES): RCU epoch = %d, want advanced past %d", got, before)
	}
	if next.Kind != ContToUser || next.Mode != RetSysexit {
		t.Fatalf("handleHazard(RCU|DS_ES): expected fallthrough to the original continuation, got %+v", next)
	}
	if ec.Regs.Hazard()&HzdDSES != 0 {
		t.Fatalf("handleHazard(RCU|DS_ES): DS_ES must be cleared once observed")
	}
}
