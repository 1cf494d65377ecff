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

	"github.com/tfc/hedron/pkg/space"
)

// TestDoEarlyNMIWorkIncrementsAcks checks spec §4.7: the early NMI
// handler does nothing but bump the per-CPU acknowledgment counter.
func TestDoEarlyNMIWorkIncrementsAcks(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)

	if got := cpu.ShootdownAcks(); got != 0 {
		t.Fatalf("fresh CPU: ShootdownAcks = %d, want 0", got)
	}
	cpu.DoEarlyNMIWork()
	cpu.DoEarlyNMIWork()
	if got := cpu.ShootdownAcks(); got != 2 {
		t.Fatalf("ShootdownAcks after two early NMIs = %d, want 2", got)
	}
}

// TestDoDeferredNMIWorkFlushesOnlyWhenStale checks that deferred work
// only flushes a CPU's TLB for a space it actually ran on and that
// hasn't already been consumed once (spec §4.7 "Deferred NMI work").
func TestDoDeferredNMIWorkFlushesOnlyWhenStale(t *testing.T) {
	k := newTestKernel(1)
	cpu := k.CPU(0)
	sp := space.New(space.HostMem, nil)

	flushed := 0
	flush := func() { flushed++ }

	cpu.DoDeferredNMIWork(sp, flush)
	if flushed != 0 {
		t.Fatalf("DoDeferredNMIWork: flushed %d times, want 0 (never ran on this space)", flushed)
	}

	sp.MarkRanCPU(cpu.ID())
	cpu.DoDeferredNMIWork(sp, flush)
	if flushed != 1 {
		t.Fatalf("DoDeferredNMIWork: flushed %d times, want 1 (stale bit was set)", flushed)
	}

	// The stale bit was consumed by the previous call; a second call with
	// nothing in between must not flush again.
	cpu.DoDeferredNMIWork(sp, flush)
	if flushed != 1 {
		t.Fatalf("DoDeferredNMIWork: flushed %d times after re-check, want 1 (stale bit already consumed)", flushed)
	}
}

// TestInitiateShootdownWaitsForAcks checks that InitiateShootdown only
// returns once every named CPU's acknowledgment counter has advanced
// (spec §4.7/§5's revocation happens-before protocol).
func TestInitiateShootdownWaitsForAcks(t *testing.T) {
	k := newTestKernel(3)

	before := make([]uint64, 3)
	for i := 0; i < 3; i++ {
		before[i] = k.CPU(i).ShootdownAcks()
	}

	k.InitiateShootdown([]int{0, 2})

	if got := k.CPU(0).ShootdownAcks(); got <= before[0] {
		t.Fatalf("CPU0 ack did not advance: got %d, was %d", got, before[0])
	}
	if got := k.CPU(2).ShootdownAcks(); got <= before[2] {
		t.Fatalf("CPU2 ack did not advance: got %d, was %d", got, before[2])
	}
	if got := k.CPU(1).ShootdownAcks(); got != before[1] {
		t.Fatalf("CPU1 ack advanced but was never targeted: got %d, was %d", got, before[1])
	}
}
