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

	"github.com/tfc/hedron/pkg/status"
)

func newTestKernel(numCPU int) *Kernel {
	return NewKernel(numCPU, Devices{})
}

// TestCallAndReplyRoundTrip is spec §8 scenario 1 plus the round-trip
// law: a call to a server that immediately replies with an unchanged
// UTCB returns SUCCESS with the UTCB contents unchanged.
func TestCallAndReplyRoundTrip(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)

	pd := NewPd(k.Root, false)
	server := NewLocalEc(pd, 0, 0)
	pt := NewPt(pd, server, 0x400000, MtdAll, 42)

	caller := NewGlobalEc(pd, 0, 0)
	sc := NewSc(pd, caller, 0, 5, time.Millisecond)
	caller.Sc = sc
	cpu.switchTo(sc) // installs caller as current and sc as the CPU's runningSc

	caller.Utcb.Payload[0] = 0xAB

	next := cpu.Call(caller, pt, false)
	if next.Kind != ContRecvUser {
		t.Fatalf("Call: expected ContRecvUser on server, got %v", next.Kind)
	}
	if server.Rcap != caller {
		t.Fatalf("Call: server.Rcap = %v, want caller", server.Rcap)
	}
	if server.Regs.DstPortal != pt.Id || server.Regs.Rip != pt.Ip {
		t.Fatalf("Call: server regs not loaded from portal: %+v", server.Regs)
	}

	server.Cont = next
	next = cpu.recvUser(server)
	if next.Kind != ContToUser || next.Mode != RetSysexit {
		t.Fatalf("recvUser: expected ToUser(RetSysexit), got %+v", next)
	}
	if server.Utcb.Payload[0] != 0xAB {
		t.Fatalf("recvUser: UTCB not copied to server, got %v", server.Utcb.Payload[0])
	}

	// Server replies with an unchanged UTCB.
	next = cpu.Reply(server)
	if next.Kind != ContToUser || next.Mode != RetSysexit {
		t.Fatalf("Reply: expected caller resumed via sysexit, got %+v", next)
	}
	if caller.Regs.Status != status.SUCCESS {
		t.Fatalf("Reply: caller status = %v, want SUCCESS", caller.Regs.Status)
	}
	if caller.Utcb.Payload[0] != 0xAB {
		t.Fatalf("Reply: caller UTCB changed, got %v", caller.Utcb.Payload[0])
	}
	if caller.Rcap != nil || caller.Partner != nil {
		t.Fatalf("Reply: expected caller's partner link cleared and no rcap on the caller")
	}
	if server.Rcap != nil || server.Partner != nil {
		t.Fatalf("Reply: expected server cleared its own partner link")
	}
}

// TestCallCrossCPURejected checks BAD_CPU: a portal bound to a server on
// a different CPU than the caller cannot be called directly (spec §8
// scenario 6 family; spec §6 "portal must be local to the caller's CPU").
func TestCallCrossCPURejected(t *testing.T) {
	k := newTestKernel(2)
	pd := NewPd(k.Root, false)
	server := NewLocalEc(pd, 1, 0)
	pt := NewPt(pd, server, 0x400000, MtdAll, 1)

	caller := NewGlobalEc(pd, 0, 0)
	cont := k.CPU(0).Call(caller, pt, false)
	if cont.Kind != ContSysFinish || cont.Status != status.BAD_CPU {
		t.Fatalf("Call across CPUs: got %+v, want SysFinish(BAD_CPU)", cont)
	}
}

// TestHelpChainUnwind is spec §8 scenario 3: A calls B (local) which is
// blocked calling C (local, on the same CPU). A's SC donates through the
// whole chain; when C replies, B's reply in turn unwinds to A.
func TestHelpChainUnwind(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	c := NewLocalEc(pd, 0, 0)
	ptC := NewPt(pd, c, 0x1000, MtdAll, 3)

	b := NewLocalEc(pd, 0, 0)
	ptB := NewPt(pd, b, 0x2000, MtdAll, 2)

	a := NewGlobalEc(pd, 0, 0)
	sc := NewSc(pd, a, 0, 1, time.Millisecond)
	a.Sc = sc
	cpu.switchTo(sc) // installs a as current and sc as the CPU's runningSc

	// A calls B: B becomes current, running on A's donated SC.
	next := cpu.Call(a, ptB, false)
	if next.Kind != ContRecvUser || cpu.Current() != b {
		t.Fatalf("A->B call: got cont %v, current %v", next, cpu.Current())
	}
	b.Cont = next
	b.Cont = cpu.recvUser(b)
	if b.Helping != sc {
		t.Fatalf("B should be running on A's donated SC")
	}

	// B, while handling A's call, calls C: B is now "busy" (Cont is not
	// none) but resolveServer only walks a chain when the *target* is
	// busy, so B calling out must bind B as C's Rcap directly (B is the
	// "caller" of this nested call, not a chain target).
	next = cpu.Call(b, ptC, false)
	if next.Kind != ContRecvUser || cpu.Current() != c {
		t.Fatalf("B->C call: got cont %v, current %v", next, cpu.Current())
	}
	c.Cont = next
	c.Cont = cpu.recvUser(c)
	if c.Helping != sc {
		t.Fatalf("C should also be running on A's donated SC: got %v", c.Helping)
	}
	if sc.LastRef() {
		t.Fatalf("sc should have two helpers (B and C) while the chain is open")
	}

	// C replies to B: sc still has one helper left (B), so this must be
	// a direct activate, not a reschedule.
	next = cpu.Reply(c)
	if next.Kind != ContToUser || cpu.Current() != b {
		t.Fatalf("C replies to B: got cont %v, current %v", next, cpu.Current())
	}
	if sc.LastRef() {
		t.Fatalf("sc should still have one helper (B) after C's reply")
	}
	b.Cont = next

	// B replies to A: this is the last helper, so sc must be handed back
	// to the scheduler rather than directly activated.
	next = cpu.Reply(b)
	if !sc.LastRef() {
		t.Fatalf("sc should have no helpers left after B's reply")
	}
	if cpu.Current() != a {
		t.Fatalf("B replies to A: expected A to be rescheduled, got current=%v", cpu.Current())
	}
}

// TestHelpTimeoutDisableBlocking is spec §8 scenario 5: a call with
// DISABLE_BLOCKING to a busy server returns COM_TIM and leaves the
// caller's state untouched.
func TestHelpTimeoutDisableBlocking(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	server := NewLocalEc(pd, 0, 0)
	server.Cont = ToUser(RetSysexit) // busy: mid-handler, looping
	pt := NewPt(pd, server, 0x400000, MtdAll, 9)

	caller := NewGlobalEc(pd, 0, 0)
	caller.Partner = nil

	next := cpu.Call(caller, pt, true)
	if next.Kind != ContSysFinish || next.Status != status.COM_TIM {
		t.Fatalf("Call with DISABLE_BLOCKING on busy server: got %+v, want SysFinish(COM_TIM)", next)
	}
	if caller.Partner != nil || caller.Rcap != nil {
		t.Fatalf("caller state must be untouched on COM_TIM")
	}
}

// TestHelpChainDepthBound checks the MaxHelp cycle-breaking bound (spec
// §8 "Help chain: depth <= MAX_HELP; cycles detected and broken with
// COM_TIM").
func TestHelpChainDepthBound(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	ecs := make([]*Ec, MaxHelp+2)
	for i := range ecs {
		ecs[i] = NewLocalEc(pd, 0, 0)
		ecs[i].Cont = ToUser(RetSysexit) // busy
	}
	for i := 0; i < len(ecs)-1; i++ {
		ecs[i].Partner = ecs[i+1]
	}

	_, code := cpu.resolveServer(ecs[0], false)
	if code != status.COM_TIM {
		t.Fatalf("resolveServer over-long chain: got %v, want COM_TIM", code)
	}
}
