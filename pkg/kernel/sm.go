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

import "github.com/tfc/hedron/pkg/sync"

// Sm is a counting Semaphore with an ordered waiter list of ECs (spec
// §3). Up/Down conserve count per spec §8: count_after = count_before +
// ups - granted_downs.
type Sm struct {
	Kobject

	mu      sync.Spinlock
	count   int64
	waiters []*Ec
}

// NewSm constructs a semaphore with the given initial count.
func NewSm(owner *Pd, initial int64) *Sm {
	s := &Sm{count: initial}
	s.initKobject(TypeSM, owner)
	return s
}

// Up wakes the longest-waiting EC if one exists, handing it the unit
// directly without touching the count; with no waiter it increments the
// count. It mirrors Sm::up.
func (s *Sm) Up() *Ec {
	defer sync.Guard(&s.mu)()
	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		return w
	}
	s.count++
	return nil
}

// Down attempts to decrement the count for ec. If the count is
// positive, it succeeds immediately (granted=true). Otherwise ec is
// queued as a waiter and Down reports granted=false; the caller (the
// IPC/syscall layer) is responsible for blocking ec's CPU until a
// matching Up or timeout wakes it, mirroring Sm::dn's zero/timeout/wake
// paths (spec §5 "Cancellation": a blocked dn accepts an absolute
// timeout).
func (s *Sm) Down(ec *Ec) (granted bool) {
	defer sync.Guard(&s.mu)()
	if s.count > 0 {
		s.count--
		return true
	}
	s.waiters = append(s.waiters, ec)
	return false
}

// CancelWait removes ec from the waiter list without granting it,
// mirroring the COM_TIM timeout-expiry path of Sm::dn. Reports whether
// ec was actually waiting.
func (s *Sm) CancelWait(ec *Ec) bool {
	defer sync.Guard(&s.mu)()
	for i, w := range s.waiters {
		if w == ec {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Count reports the current count, for diagnostics and tests.
func (s *Sm) Count() int64 {
	defer sync.Guard(&s.mu)()
	return s.count
}
