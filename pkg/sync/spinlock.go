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

// Package sync provides the low-level mutual-exclusion primitive the
// kernel's per-space trees and per-CPU bookkeeping are built on. Faults
// and MDB mutations are rare enough, and held for short enough, that a
// spinning lock beats a parking one: there is no kernel scheduler to park
// against below this layer.
package sync

import (
	"runtime"
	"sync/atomic"
)

// Spinlock is a simple test-and-test-and-set spinlock. The zero value is
// unlocked. It must not be copied after first use.
type Spinlock struct {
	held atomic.Bool
}

// Lock spins until the lock is acquired. It backs off with runtime.Gosched
// after a short busy-spin so a CPU stuck waiting on another goroutine
// doesn't starve the Go scheduler of the chance to run the lock holder.
func (s *Spinlock) Lock() {
	spins := 0
	for !s.held.CompareAndSwap(false, true) {
		for s.held.Load() {
			spins++
			if spins > 64 {
				runtime.Gosched()
				spins = 0
			}
		}
	}
}

// TryLock attempts to acquire the lock without spinning, reporting success.
func (s *Spinlock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlocking an unlocked Spinlock is a bug in the
// caller and panics, matching the original kernel's assert discipline.
func (s *Spinlock) Unlock() {
	if !s.held.CompareAndSwap(true, false) {
		panic("sync: Unlock of unlocked Spinlock")
	}
}

// Guard locks s and returns a function that unlocks it, for the common
//
//	defer sync.Guard(&s)()
//
// call pattern used throughout the space and MDB layers.
func Guard(s *Spinlock) func() {
	s.Lock()
	return s.Unlock
}
