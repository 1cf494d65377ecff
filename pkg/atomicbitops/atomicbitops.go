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

// Package atomicbitops provides atomic bitwise operations on machine
// words, used for the per-CPU hazard words (spec §4.6) and for
// kernel object reference counts. Hazards are read far more often than
// they are set, so these favor a CAS loop over a global lock.
package atomicbitops

import "sync/atomic"

// Word is a machine word manipulated with atomic bitwise operations. The
// zero value is all bits clear.
type Word struct {
	v atomic.Uint64
}

// Load returns the current value.
func (w *Word) Load() uint64 { return w.v.Load() }

// Or atomically sets the bits in mask and returns the new value.
func (w *Word) Or(mask uint64) uint64 {
	for {
		o := w.v.Load()
		n := o | mask
		if w.v.CompareAndSwap(o, n) {
			return n
		}
	}
}

// AndNot atomically clears the bits in mask and returns the new value.
func (w *Word) AndNot(mask uint64) uint64 {
	for {
		o := w.v.Load()
		n := o &^ mask
		if w.v.CompareAndSwap(o, n) {
			return n
		}
	}
}

// TestAndClear atomically clears the bits in mask and reports whether any
// of them were set beforehand, for callers that must act on a bit exactly
// once.
func (w *Word) TestAndClear(mask uint64) bool {
	for {
		o := w.v.Load()
		if o&mask == 0 {
			return false
		}
		if w.v.CompareAndSwap(o, o&^mask) {
			return true
		}
	}
}

// Store atomically sets the value, discarding whatever was there.
func (w *Word) Store(v uint64) { w.v.Store(v) }

// RefCount is an atomic, saturating-checked reference count for kernel
// objects (PD/EC/SC/PT/SM/KP/VCPU). It does not itself free anything: the
// caller arranges reclamation (via pkg/rcu) when Dec returns true.
type RefCount struct {
	n atomic.Int64
}

// Init sets the initial count. Must be called before any Inc/Dec, and
// exactly once.
func (r *RefCount) Init(n int64) { r.n.Store(n) }

// Inc increments the count. Panics if the object is already dead (count
// reached zero), since resurrecting a freed capability target is a
// use-after-free bug in the caller, not a recoverable condition.
func (r *RefCount) Inc() {
	if r.n.Add(1) <= 1 {
		panic("atomicbitops: Inc of dead RefCount")
	}
}

// Dec decrements the count and reports whether it reached zero, i.e.
// whether the caller is now responsible for reclaiming the object.
func (r *RefCount) Dec() bool {
	return r.n.Add(-1) == 0
}

// Load returns the current count, for diagnostics and tests only.
func (r *RefCount) Load() int64 { return r.n.Load() }
