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

import "testing"

// TestSmDownGrantsWhenPositive checks the immediate-grant path: a
// positive count is decremented and Down reports granted.
func TestSmDownGrantsWhenPositive(t *testing.T) {
	sm := NewSm(nil, 1)
	ec := NewLocalEc(NewPd(nil, false), 0, 0)

	if granted := sm.Down(ec); !granted {
		t.Fatalf("Down on a positive count: expected granted=true")
	}
	if sm.Count() != 0 {
		t.Fatalf("Down: count = %d, want 0", sm.Count())
	}
}

// TestSmDownBlocksWhenZero checks that a Down against a zero count
// queues the EC as a waiter instead of granting it.
func TestSmDownBlocksWhenZero(t *testing.T) {
	sm := NewSm(nil, 0)
	ec := NewLocalEc(NewPd(nil, false), 0, 0)

	if granted := sm.Down(ec); granted {
		t.Fatalf("Down on a zero count: expected granted=false")
	}
	if sm.Count() != 0 {
		t.Fatalf("Down: count must stay 0 while queued, got %d", sm.Count())
	}
}

// TestSmUpWakesLongestWaitingFirst checks the FIFO wake order Sm::up
// mirrors, and the conservation law from spec §8: an Up against a
// waiter list hands the unit directly to the oldest waiter instead of
// incrementing count (count_after = count_before + ups - granted_downs,
// net zero here since the waiter's Down never granted immediately).
func TestSmUpWakesLongestWaitingFirst(t *testing.T) {
	sm := NewSm(nil, 0)
	pd := NewPd(nil, false)
	first := NewLocalEc(pd, 0, 0)
	second := NewLocalEc(pd, 0, 0)

	sm.Down(first)
	sm.Down(second)

	woken := sm.Up()
	if woken != first {
		t.Fatalf("Up: expected first waiter woken, got %v", woken)
	}
	if sm.Count() != 0 {
		t.Fatalf("Up waking a queued waiter must not also increment count, got %d", sm.Count())
	}

	woken = sm.Up()
	if woken != second {
		t.Fatalf("Up: expected second waiter woken next, got %v", woken)
	}

	// No waiters left: the next Up increments count instead.
	woken = sm.Up()
	if woken != nil {
		t.Fatalf("Up with no waiters: expected nil wakeup, got %v", woken)
	}
	if sm.Count() != 1 {
		t.Fatalf("Up with no waiters: count = %d, want 1", sm.Count())
	}
}

// TestSmCancelWaitRemovesOnlyNamedWaiter exercises the COM_TIM
// timeout-expiry path: CancelWait removes exactly the named EC, leaving
// the rest of the queue's order intact.
func TestSmCancelWaitRemovesOnlyNamedWaiter(t *testing.T) {
	sm := NewSm(nil, 0)
	pd := NewPd(nil, false)
	a := NewLocalEc(pd, 0, 0)
	b := NewLocalEc(pd, 0, 0)
	c := NewLocalEc(pd, 0, 0)

	sm.Down(a)
	sm.Down(b)
	sm.Down(c)

	if !sm.CancelWait(b) {
		t.Fatalf("CancelWait: expected b to be found and removed")
	}
	if sm.CancelWait(b) {
		t.Fatalf("CancelWait: b was already removed, second call must report false")
	}

	if woken := sm.Up(); woken != a {
		t.Fatalf("Up after cancelling b: expected a woken first, got %v", woken)
	}
	if woken := sm.Up(); woken != c {
		t.Fatalf("Up after cancelling b: expected c woken next (b skipped), got %v", woken)
	}
}
