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

// Package rcu implements the quiescent-state reclamation the kernel uses
// to free capability-tree nodes and kernel objects without holding a lock
// across every CPU that might be dereferencing them.
//
// The scheme mirrors the original kernel's Rcu::quiet()/Rcu::call(): each
// CPU periodically declares itself quiescent (it holds no references that
// predate the current epoch). Once every CPU has done so since a batch of
// callbacks was queued, the epoch advances and the batch runs. Unlike the
// original's two-epoch/two-list scheme, callbacks here are tagged with the
// epoch active at Call time and released once the global epoch has
// advanced twice past it — one full grace period plus the epoch the
// batch was queued in, which is sufficient because CPUs only ever read
// the current or previous epoch.
package rcu

import (
	"sync/atomic"

	"github.com/tfc/hedron/pkg/sync"
)

// Callback is deferred work run once no CPU can still be observing the
// pre-grace-period state — typically freeing a kernel object or MDB node.
type Callback func()

type batch struct {
	epoch     uint64
	callbacks []Callback
}

// Domain is one RCU domain. The kernel has exactly one, sized to the
// number of CPUs at boot; tests may construct smaller domains.
type Domain struct {
	mu        sync.Spinlock
	numCPU    int
	epoch     atomic.Uint64
	cpuEpoch  []atomic.Uint64 // last epoch each CPU reported quiescent for
	pending   []batch
}

// NewDomain constructs an RCU domain for numCPU CPUs, numbered 0..numCPU-1.
func NewDomain(numCPU int) *Domain {
	d := &Domain{numCPU: numCPU, cpuEpoch: make([]atomic.Uint64, numCPU)}
	d.epoch.Store(1)
	return d
}

// Quiet is called by CPU cpu at a safepoint (return-to-user, idle loop) to
// declare that it holds no reference older than the current epoch. This
// corresponds to HZD_RCU handling in the original kernel: every
// return-to-user path that observes the hazard calls this before
// proceeding.
func (d *Domain) Quiet(cpu int) {
	d.cpuEpoch[cpu].Store(d.epoch.Load())
	d.tryAdvance()
}

// Call enqueues cb to run once the global epoch has advanced twice past
// the epoch current at the time of this call, i.e. once every CPU has
// been observed quiescent in a later epoch. It corresponds to Rcu::call().
func (d *Domain) Call(cb Callback) {
	defer sync.Guard(&d.mu)()
	e := d.epoch.Load()
	for i := range d.pending {
		if d.pending[i].epoch == e {
			d.pending[i].callbacks = append(d.pending[i].callbacks, cb)
			return
		}
	}
	d.pending = append(d.pending, batch{epoch: e, callbacks: []Callback{cb}})
}

// tryAdvance checks whether every CPU has reported quiescence for the
// current epoch and, if so, advances it and runs batches that are now
// provably safe to free (those queued before the epoch that just became
// globally quiescent).
func (d *Domain) tryAdvance() {
	cur := d.epoch.Load()
	for cpu := 0; cpu < d.numCPU; cpu++ {
		if d.cpuEpoch[cpu].Load() < cur {
			return
		}
	}
	if !d.epoch.CompareAndSwap(cur, cur+1) {
		return // another CPU already advanced it
	}
	d.runDue(cur)
}

func (d *Domain) runDue(quiescentEpoch uint64) {
	var due []batch
	func() {
		defer sync.Guard(&d.mu)()
		var keep []batch
		for _, b := range d.pending {
			if b.epoch < quiescentEpoch {
				due = append(due, b)
			} else {
				keep = append(keep, b)
			}
		}
		d.pending = keep
	}()
	// Callbacks run with no lock held: they may themselves call Call (e.g.
	// a freed PD's destructor queuing frees for its children).
	for _, b := range due {
		for _, cb := range b.callbacks {
			cb()
		}
	}
}

// NumCPU reports the number of CPUs this domain tracks, for tests.
func (d *Domain) NumCPU() int { return d.numCPU }

// Epoch reports the current global epoch, for tests and diagnostics.
func (d *Domain) Epoch() uint64 { return d.epoch.Load() }
