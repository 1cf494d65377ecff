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

// TrapKind describes why CPU.ReturnToUser returned control to its
// caller: the dispatch loop has reached an actual boundary with user or
// guest execution, or the CPU has nothing runnable and would halt.
type TrapKind uint8

const (
	TrapToUser TrapKind = iota
	TrapHalt
	TrapDead
)

// Trap is what CPU.ReturnToUser returns once it reaches a point that, on
// real hardware, would be a sysret/iret/vmresume/hlt instruction. There
// is no ring transition to simulate in Go, so callers (tests, the
// syscall entry point, cmd/hedron's CPU loop) observe the Trap and
// decide what "user/guest execution" does next.
type Trap struct {
	Kind TrapKind
	Ec   *Ec
	Mode RetMode
}

// Enqueue places sc on this CPU's ready queue at its priority. It must
// only be called for an SC whose Cpu is this CPU; cross-CPU wakeups go
// through RemoteEnqueue.
func (c *CPU) Enqueue(sc *Sc) {
	defer sync.Guard(&c.readyMu)()
	c.enqueueLocked(sc)
}

func (c *CPU) enqueueLocked(sc *Sc) {
	c.ready[sc.Priority] = append(c.ready[sc.Priority], sc)
}

// RemoteEnqueue pushes sc onto this CPU's pending queue from another
// CPU and always marks the reschedule IPI hazard, so it is picked up at
// the next return-to-user boundary (spec §4.5 "Cross-CPU wakeup").
func (c *CPU) RemoteEnqueue(sc *Sc) {
	defer sync.Guard(&c.readyMu)()
	c.pending = append(c.pending, sc)
	c.ipiPending.Store(1)
	c.hazard.Or(HzdSched)
}

func (c *CPU) drainPending() {
	defer sync.Guard(&c.readyMu)()
	for _, sc := range c.pending {
		c.enqueueLocked(sc)
	}
	c.pending = c.pending[:0]
	c.ipiPending.Store(0)
}

// pickReadySC dequeues the head SC of the highest non-empty priority
// queue, or nil if none is runnable (spec §4.5 schedule()).
func (c *CPU) pickReadySC() *Sc {
	defer sync.Guard(&c.readyMu)()
	for p := NumPriorities - 1; p >= 0; p-- {
		q := c.ready[p]
		if len(q) > 0 {
			sc := q[0]
			c.ready[p] = q[1:]
			return sc
		}
	}
	return nil
}

// switchTo installs sc as the CPU's current SC/EC, replenishing its
// quantum, and returns the EC's continuation for the dispatch loop to
// resume.
func (c *CPU) switchTo(sc *Sc) Continuation {
	sc.Replenish()
	c.current = sc.Ec
	c.runningSc = sc
	return sc.Ec.Cont
}

// activate switches current to ec without touching runningSc, for the
// IPC engine moving across a chain of local ECs that all run on the
// same donated SC (spec §4.4 "activate(C)").
func (c *CPU) activate(ec *Ec) Continuation {
	c.current = ec
	return ec.Cont
}

// schedule picks the highest-priority runnable SC and switches to it,
// per spec §4.5. If requeueCurrent is set, the CPU's current SC (if it
// has one of its own — a local EC borrowing time has none) is pushed
// back onto the ready queue first, as Sc::schedule(true) does for an
// EC yielding cooperatively rather than being preempted out from under
// it. If nothing is runnable, the CPU goes idle.
func (c *CPU) schedule(requeueCurrent bool) Continuation {
	c.drainPending()
	if requeueCurrent && c.current.Glb && c.current.Sc != nil {
		c.enqueueLocked(c.current.Sc)
	}
	sc := c.pickReadySC()
	if sc == nil {
		c.current = c.idleEc
		c.runningSc = nil
		return Idle
	}
	return c.switchTo(sc)
}

// Schedule is the exported entry point to schedule (spec §4.5); it
// stores the picked continuation on the EC that becomes current.
func (c *CPU) Schedule(requeueCurrent bool) {
	c.current.Cont = c.schedule(requeueCurrent)
}

// ReturnToUser drives the continuation dispatch loop until it reaches
// an actual return-to-user/guest boundary or the idle halt point (spec
// §4.6 "return-to-user path"). It is the sole entry point that advances
// this CPU's state machine; everything else (IPC, scheduler picks,
// hazard handling) only ever changes which continuation is installed.
func (c *CPU) ReturnToUser(ec *Ec) Trap {
	c.current = ec
	for {
		ec = c.current
		switch ec.Cont.Kind {
		case ContNone:
			panic("kernel: ReturnToUser on EC with no continuation installed")

		case ContToUser:
			if hzd := sampleHazards(c, ec, ec.Cont.Mode); hzd != 0 {
				ec.Cont = c.handleHazard(ec, hzd, ec.Cont)
				continue
			}
			return Trap{Kind: TrapToUser, Ec: ec, Mode: ec.Cont.Mode}

		case ContIdle:
			if hzd := c.hazard.Load() & (HzdRCU | HzdSched); hzd != 0 {
				ec.Cont = c.handleHazard(ec, hzd, Idle)
				continue
			}
			c.rcu.Quiet(c.id) // Ec::idl_handler: idle keeps the epoch moving
			ec.Cont = c.schedule(false)
			if ec.Cont.Kind == ContIdle {
				return Trap{Kind: TrapHalt, Ec: ec}
			}

		case ContRecvUser:
			ec.Cont = c.recvUser(ec)

		case ContRecvKern:
			ec.Cont = c.recvKern(ec)

		case ContSendMsg:
			ec.Cont = c.sendMsgDeliver(ec, ec.Cont.Send)

		case ContSysFinish:
			ec.Regs.Status = ec.Cont.Status
			ec.Cont = ToUser(RetSysexit)

		case ContDead:
			return Trap{Kind: TrapDead, Ec: ec}
		}
	}
}
