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

import "github.com/tfc/hedron/pkg/rcu"

// Event-portal vector indices, derived as EC.Evt + vector (spec
// §GLOSSARY "Event base").
const (
	ExcDB     = 1
	ExcGP     = 13
	ExcPF     = 14
	ExcMC     = 18
	ExcRecall = 32
	ExcStartup = 33
)

// NumPriorities is the number of fixed-priority ready queues the
// scheduler maintains per CPU (spec §4.5).
const NumPriorities = 128

// MaxHelp bounds help-chain depth before a cycle is declared a deadlock
// and the caller is charged COM_TIM (spec §4.4, §8).
const MaxHelp = 64

// Kernel is the process-wide context every constructor is handed
// instead of reaching for package-level mutable state (spec Design
// Notes: "Global singletons... should be stored in a per-CPU or
// process-wide context passed to constructors, not in process-wide
// mutable statics").
type Kernel struct {
	CPUs    []*CPU
	RCU     *rcu.Domain
	Root    *Pd
	Devices Devices
}

// NewKernel constructs a Kernel with numCPU CPUs, each with an idle EC
// and an empty ready-queue set, plus a kernel PD that owns no spaces of
// its own beyond bookkeeping (mirrors Pd::kern). devices wires the
// external-collaborator interfaces ASSIGN_PCI/IRQ_CTRL/MACHINE_CTRL
// forward to; its zero value leaves all three unwired (BAD_DEV).
func NewKernel(numCPU int, devices Devices) *Kernel {
	k := &Kernel{RCU: rcu.NewDomain(numCPU), Devices: devices}
	k.Root = NewPd(nil, true)
	for i := 0; i < atLeastOne(numCPU); i++ {
		k.CPUs = append(k.CPUs, newCPU(k, i))
	}
	return k
}

func atLeastOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// CPU returns the CPU with the given id, or nil if out of range.
func (k *Kernel) CPU(id int) *CPU {
	if id < 0 || id >= len(k.CPUs) {
		return nil
	}
	return k.CPUs[id]
}
