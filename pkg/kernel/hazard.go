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

// Hazard bits, OR'd between the per-CPU word and the per-EC word and
// serviced in a fixed precedence at every return-to-user boundary
// (spec §4.6).
const (
	HzdRCU uint64 = 1 << iota
	HzdSched
	HzdRecall
	HzdStep
	HzdDSES
	HzdTR
	HzdTLB
)

// sampleHazards ORs the per-CPU and per-EC hazard words and masks to the
// bits relevant to mode: ret_user_iret ignores HZD_DS_ES because IRET
// reloads segment selectors unconditionally (spec §4.6 step 5).
func sampleHazards(cpu *CPU, ec *Ec, mode RetMode) uint64 {
	mask := HzdRecall | HzdStep | HzdRCU | HzdSched
	if mode != RetIret {
		mask |= HzdDSES
	}
	return (cpu.hazard.Load() | ec.Regs.Hazard()) & mask
}

// handleHazard services hazards in the precedence spec §4.6 fixes: RCU,
// then SCHED, then RECALL, then STEP, then DS_ES. It returns the
// continuation the dispatch loop should install next. next is the
// continuation the caller was about to run (ret_user_sysexit or
// ret_user_iret) before hazards were observed, used both as the
// "resume here after SCHED" continuation and to decide whether RECALL/
// STEP must first redirect a sysexit-bound EC through the iret path
// (only iret frames carry room for synthesized exception delivery).
func (cpu *CPU) handleHazard(ec *Ec, hzd uint64, next Continuation) Continuation {
	if hzd&HzdRCU != 0 {
		cpu.hazard.AndNot(HzdRCU)
		cpu.rcu.Quiet(cpu.id)
	}

	if hzd&HzdSched != 0 {
		cpu.hazard.AndNot(HzdSched)
		ec.Cont = next
		return cpu.schedule(false)
	}

	if hzd&HzdRecall != 0 {
		ec.Regs.ClearHazard(HzdRecall)
		if next.Kind == ContToUser && next.Mode == RetSysexit {
			next = ToUser(RetIret)
		}
		ec.Regs.DstPortal = ExcRecall
		return cpu.sendMsgException(ec, next)
	}

	if hzd&HzdStep != 0 {
		ec.Regs.ClearHazard(HzdStep)
		if next.Kind == ContToUser && next.Mode == RetSysexit {
			next = ToUser(RetIret)
		}
		ec.Regs.DstPortal = ExcDB
		return cpu.sendMsgException(ec, next)
	}

	// HZD_DS_ES: segment reload has no user-visible Go analogue; treated
	// as already handled once observed.
	ec.Regs.ClearHazard(HzdDSES)
	return next
}
