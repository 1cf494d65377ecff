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

// TestScheduleHighestPriorityFirst checks spec §4.5's fixed-priority
// invariant: of several ready SCs, the one at the highest priority
// number always runs next, regardless of enqueue order.
func TestScheduleHighestPriorityFirst(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	low := NewGlobalEc(pd, 0, 0)
	scLow := NewSc(pd, low, 0, 1, time.Millisecond)
	low.Sc = scLow

	high := NewGlobalEc(pd, 0, 0)
	scHigh := NewSc(pd, high, 0, 7, time.Millisecond)
	high.Sc = scHigh

	cpu.Enqueue(scLow)
	cpu.Enqueue(scHigh)

	next := cpu.schedule(false)
	if cpu.Current() != high {
		t.Fatalf("schedule: expected higher-priority SC picked first, got current=%v", cpu.Current())
	}
	if next.Kind != ContIdle {
		t.Fatalf("schedule: expected high EC's continuation (ContIdle, its NewGlobalEc default), got %v", next)
	}

	// Once high is running, low is still queued and runs next.
	next = cpu.schedule(false)
	if cpu.Current() != low {
		t.Fatalf("schedule: expected low-priority SC picked once nothing else is queued, got current=%v", cpu.Current())
	}
	_ = next
}

// TestScheduleFIFOWithinPriority checks that two SCs at the same
// priority run in enqueue order (spec §4.5 "round-robin").
func TestScheduleFIFOWithinPriority(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	first := NewGlobalEc(pd, 0, 0)
	scFirst := NewSc(pd, first, 0, 3, time.Millisecond)
	first.Sc = scFirst

	second := NewGlobalEc(pd, 0, 0)
	scSecond := NewSc(pd, second, 0, 3, time.Millisecond)
	second.Sc = scSecond

	cpu.Enqueue(scFirst)
	cpu.Enqueue(scSecond)

	cpu.schedule(false)
	if cpu.Current() != first {
		t.Fatalf("schedule: expected FIFO order within a priority, got current=%v", cpu.Current())
	}
	cpu.schedule(false)
	if cpu.Current() != second {
		t.Fatalf("schedule: expected second SC to run after first, got current=%v", cpu.Current())
	}
}

// TestScheduleRequeueCurrent checks that a cooperative yield
// (requeueCurrent=true) puts the current Glb EC's SC back on the ready
// queue rather than dropping it, while a local EC with no SC of its own
// is left alone (spec §4.5 "Sc::schedule(true)").
func TestScheduleRequeueCurrent(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	a := NewGlobalEc(pd, 0, 0)
	scA := NewSc(pd, a, 0, 2, time.Millisecond)
	a.Sc = scA
	cpu.switchTo(scA)

	b := NewGlobalEc(pd, 0, 0)
	scB := NewSc(pd, b, 0, 2, time.Millisecond)
	b.Sc = scB
	cpu.Enqueue(scB)

	// Yielding cooperatively must requeue A behind B (B was already
	// waiting), then pick B since it's now at the head of the queue.
	cpu.schedule(true)
	if cpu.Current() != b {
		t.Fatalf("schedule(true): expected B to run, got current=%v", cpu.Current())
	}

	// A must have been requeued: it should run next once B yields too.
	cpu.schedule(true)
	if cpu.Current() != a {
		t.Fatalf("schedule(true): expected A requeued and picked next, got current=%v", cpu.Current())
	}
}

// TestScheduleIdlesWhenEmpty checks that schedule falls back to the
// CPU's idle EC when no SC is ready (spec §4.5 "idle" path).
func TestScheduleIdlesWhenEmpty(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)

	next := cpu.schedule(false)
	if next.Kind != ContIdle {
		t.Fatalf("schedule: expected ContIdle with nothing runnable, got %v", next)
	}
	if cpu.Current() != cpu.idleEc {
		t.Fatalf("schedule: expected idleEc installed as current")
	}
}

// TestRemoteEnqueueSetsSchedHazard checks spec §4.5's cross-CPU wakeup
// path: RemoteEnqueue stages the SC and raises HzdSched so the target
// CPU picks it up at its next hazard sample, rather than enqueueing it
// directly (which would race the owning CPU's dispatch loop).
func TestRemoteEnqueueSetsSchedHazard(t *testing.T) {
	k := newTestKernel(2)
	pd := NewPd(k.Root, false)
	target := k.CPU(1)

	ec := NewGlobalEc(pd, 1, 0)
	sc := NewSc(pd, ec, 1, 4, time.Millisecond)
	ec.Sc = sc

	target.RemoteEnqueue(sc)

	if got := target.Hazard().Load() & HzdSched; got == 0 {
		t.Fatalf("RemoteEnqueue: expected HzdSched raised on target CPU")
	}
	if len(target.pending) != 1 {
		t.Fatalf("RemoteEnqueue: expected sc staged on pending, got %d entries", len(target.pending))
	}

	target.drainPending()
	if len(target.pending) != 0 {
		t.Fatalf("drainPending: expected pending cleared")
	}
	if len(target.ready[sc.Priority]) != 1 {
		t.Fatalf("drainPending: expected sc moved to its priority's ready queue")
	}
}

// TestReturnToUserHaltsWhenIdle checks that ReturnToUser reports
// TrapHalt once it reaches ContIdle with nothing runnable, rather than
// spinning forever inside the dispatch loop.
func TestReturnToUserHaltsWhenIdle(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)

	trap := cpu.ReturnToUser(cpu.idleEc)
	if trap.Kind != TrapHalt {
		t.Fatalf("ReturnToUser: expected TrapHalt with nothing runnable, got %v", trap.Kind)
	}
}

// TestReturnToUserResumesToUser checks that a ContToUser continuation
// with no hazards pending surfaces as TrapToUser immediately.
func TestReturnToUserResumesToUser(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	pd := NewPd(k.Root, false)

	ec := NewGlobalEc(pd, 0, 0)
	sc := NewSc(pd, ec, 0, 5, time.Millisecond)
	ec.Sc = sc
	ec.Cont = ToUser(RetSysexit)
	cpu.current = ec

	trap := cpu.ReturnToUser(ec)
	if trap.Kind != TrapToUser || trap.Mode != RetSysexit {
		t.Fatalf("ReturnToUser: expected TrapToUser(RetSysexit), got %+v", trap)
	}
}
