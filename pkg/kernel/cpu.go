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
	"sync/atomic"

	"github.com/tfc/hedron/pkg/atomicbitops"
	"github.com/tfc/hedron/pkg/rcu"
	"github.com/tfc/hedron/pkg/sync"
)

// CPU is the per-CPU state the scheduler, hazard handling, and NMI
// shootdown machinery operate on (spec §3 "Cpulocal", §4.5-§4.7). The
// kernel has exactly one goroutine driving each CPU's ReturnToUser
// dispatch loop at a time, matching spec §5's "one kernel-mode execution
// per CPU at a time."
type CPU struct {
	id     int
	kernel *Kernel
	rcu    *rcu.Domain

	hazard atomicbitops.Word

	current *Ec
	idleEc  *Ec

	// runningSc is the SC whose quantum is currently being consumed —
	// set by the scheduler on every switchTo and left untouched while
	// IPC moves current across a chain of local ECs running on its
	// donated time (spec §4.4 "help donation").
	runningSc *Sc

	readyMu sync.Spinlock
	ready   [NumPriorities][]*Sc
	pending []*Sc // cross-CPU remote_enqueue staging, drained by schedule()

	// shootdownAcks is incremented by DoEarlyNMIWork and is safe to touch
	// from NMI context: it is the one counter the deferred-work path may
	// rely on without taking any lock (spec §4.7).
	shootdownAcks atomic.Uint64

	// ipiPending models VEC_IPI_RKE: a pending reschedule request this CPU will
	// observe the next time it samples hazards.
	ipiPending atomicbitops.Word
}

func newCPU(k *Kernel, id int) *CPU {
	c := &CPU{id: id, kernel: k, rcu: k.RCU}
	c.idleEc = NewGlobalEc(k.Root, id, 0)
	c.idleEc.Cont = Idle
	c.current = c.idleEc
	return c
}

// ID returns the CPU's id.
func (c *CPU) ID() int { return c.id }

// Current returns the EC currently loaded on this CPU.
func (c *CPU) Current() *Ec { return c.current }

// Hazard returns the per-CPU hazard word.
func (c *CPU) Hazard() *atomicbitops.Word { return &c.hazard }

// SetHazard ORs bits into the per-CPU hazard word; the CPU observes them
// the next time it samples hazards. It sends no IPI itself: raising
// HzdSched on another CPU is how this core models the reschedule IPI
// (spec §5 "Cancellation").
func (c *CPU) SetHazard(bits uint64) { c.hazard.Or(bits) }
