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

import "time"

// Sc is a Scheduling Context: a (priority, quantum, bound EC) triple
// plus residual budget and accumulated CPU time (spec §3). The ability
// to donate an SC's time to another EC through IPC is central to the
// IPC engine.
type Sc struct {
	Kobject

	Ec       *Ec
	CPU      int
	Priority int
	Quantum  time.Duration

	budget   time.Duration
	consumed time.Duration

	// helpers tracks how many ECs are currently running on donated time
	// from this SC (the help chain); reply's "last_ref" check uses this
	// to decide whether to reschedule once a borrowed SC's final
	// borrower replies.
	helpers int
}

// NewSc constructs an SC bound to ec with the given priority and
// quantum.
func NewSc(owner *Pd, ec *Ec, cpu, priority int, quantum time.Duration) *Sc {
	s := &Sc{Ec: ec, CPU: cpu, Priority: priority, Quantum: quantum, budget: quantum}
	s.initKobject(TypeSC, owner)
	ec.Sc = s
	return s
}

// Charge accounts d of wall time against this SC's budget and total
// consumed time, returning true if the quantum is now exhausted.
func (s *Sc) Charge(d time.Duration) bool {
	s.consumed += d
	s.budget -= d
	return s.budget <= 0
}

// Replenish resets the residual budget to a full quantum, done when the
// scheduler reselects this SC to run.
func (s *Sc) Replenish() { s.budget = s.Quantum }

// Consumed reports total CPU time ever charged to this SC, for
// diagnostics (Sc::time in the original).
func (s *Sc) Consumed() time.Duration { return s.consumed }

// addHelper/delHelper track how many ECs are currently running on this
// SC's donated time through a help chain.
func (s *Sc) addHelper() { s.helpers++ }
func (s *Sc) delHelper() { s.helpers-- }

// LastRef reports whether s currently has no other EC running on its
// donated time, mirroring Sc::last_ref's use in the reply path (spec
// §4.4 step 4).
func (s *Sc) LastRef() bool { return s.helpers == 0 }
