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

import "github.com/tfc/hedron/pkg/status"

// maxItems bounds how many typed items xferItems copies per delegate/
// reply, mirroring the UTCB's fixed-size item array (spec §6 "UTCB").
const maxItems = 8

// Call implements sys_call: the user-initiated portal invocation (spec
// §4.4 "Call path"). caller donates its execution to pt's server EC,
// helping it through a busy chain first if necessary.
func (c *CPU) Call(caller *Ec, pt *Pt, disableBlocking bool) Continuation {
	if pt.Ec.CPU != caller.CPU {
		return SysFinish(status.BAD_CPU)
	}

	server, code := c.resolveServer(pt.Ec, disableBlocking)
	if code != status.SUCCESS {
		return SysFinish(code)
	}

	caller.Cont = ToUser(RetSysexit)
	caller.SetPartner(server)
	server.Rcap = caller
	server.Regs.DstPortal = pt.Id
	server.Regs.Rip = pt.Ip
	server.Regs.Mtd = pt.Mtd
	c.bindHelper(server)
	server.Cont = RecvUser

	return c.activate(server)
}

// sendMsgException delivers an exception/recall/step event on ec
// through its event portal (Evt + Regs.DstPortal), installing next as
// the continuation ec resumes into once the handler replies (spec §4.4
// "Exception path"). Called by hazard handling with next already
// adjusted for sysexit-to-iret redirection.
func (c *CPU) sendMsgException(ec *Ec, next Continuation) Continuation {
	return c.sendMsg(ec, next)
}

// sendMsgDeliver is the dispatch-loop handler for ContSendMsg: an EC
// (typically a Vcpu after Exit) was marked for kernel-generated
// delivery through its event portal with the default return path for
// its SendKind, rather than an explicit next computed by hazard
// handling.
func (c *CPU) sendMsgDeliver(ec *Ec, kind SendKind) Continuation {
	var next Continuation
	switch kind {
	case SendVMExit:
		next = ToUser(RetVMResume)
	default:
		next = ToUser(RetIret)
	}
	return c.sendMsg(ec, next)
}

func (c *CPU) sendMsg(ec *Ec, next Continuation) Continuation {
	pt := c.lookupEventPortal(ec, ec.Regs.DstPortal)
	if pt == nil {
		// No handler installed for this event: nothing to deliver to, so
		// the faulting EC cannot make progress. Drop it back to the
		// scheduler rather than panicking the whole CPU — an unhandled
		// event portal is a configuration error in the calling PD, not a
		// kernel invariant violation.
		ec.Cont = next
		return c.schedule(false)
	}

	server, code := c.resolveServer(pt.Ec, false)
	if code != status.SUCCESS {
		ec.Cont = next
		return c.schedule(false)
	}

	ec.Cont = next
	ec.SetPartner(server)
	server.Rcap = ec
	server.Regs.DstPortal = pt.Id
	server.Regs.Rip = pt.Ip
	server.Regs.Mtd = pt.Mtd
	c.bindHelper(server)
	server.Cont = RecvKern

	return c.activate(server)
}

// Reply implements sys_reply (spec §4.4 "Reply path"). current is the
// server EC issuing the reply.
func (c *CPU) Reply(current *Ec) Continuation {
	caller := current.Rcap
	if caller == nil {
		return c.schedule(true)
	}

	if current.Utcb.TypedCount() > 0 {
		if err := xferItems(current, caller); err != nil {
			caller.Regs.Status = status.ToCode(err)
		} else {
			caller.Regs.Status = status.SUCCESS
		}
	} else {
		caller.Regs.Status = status.SUCCESS
	}
	current.Utcb.Save(&caller.Utcb)

	current.ClrPartner()
	caller.ClrPartner()
	current.Rcap = nil

	sc := current.Helping
	current.Helping = nil
	if sc != nil {
		sc.delHelper()
		if sc.LastRef() {
			// Nobody else is running on sc's donated time: drop it back
			// onto the ready queue and let the scheduler pick, so a
			// higher-priority SC that became ready while this chain ran
			// gets first refusal (spec §4.4 step 4).
			c.Enqueue(sc)
			return c.schedule(false)
		}
	}

	return c.activate(caller)
}

// recvUser is the dispatch-loop handler for ContRecvUser: a server EC
// was just activated by a call and is about to resume into its handler.
// It finalizes typed-item transfer from the caller and hands control to
// ret_user_sysexit.
func (c *CPU) recvUser(ec *Ec) Continuation {
	caller := ec.Rcap
	if caller == nil {
		return ToUser(RetSysexit)
	}
	if caller.Utcb.TypedCount() > 0 {
		ec.Regs.Status = status.ToCode(xferItems(caller, ec))
	}
	caller.Utcb.Save(&ec.Utcb)
	return ToUser(RetSysexit)
}

// recvKern is the dispatch-loop handler for ContRecvKern: an exception
// or VM-exit handler was just activated through its event portal. It
// reuses recvUser's finalization — both result in the receiver resuming
// via sysexit into handler code; the distinction the original makes
// between load_exc and load_vmx is about which hardware register groups
// get reloaded, not about anything the IPC state machine itself branches
// on here.
func (c *CPU) recvKern(ec *Ec) Continuation {
	return c.recvUser(ec)
}

// resolveServer returns target if it is free, or walks target's
// partner chain helping it along until a free EC is found, a cycle/
// depth watermark is hit, or the chain dead-ends on an EC that is busy
// but not itself waiting on anyone (spec §4.4 "Help donation").
func (c *CPU) resolveServer(target *Ec, disableBlocking bool) (*Ec, status.Code) {
	cur := target
	depth := 0
	for cur.Busy() {
		if disableBlocking {
			return nil, status.COM_TIM
		}
		depth++
		if depth > MaxHelp {
			return nil, status.COM_TIM
		}
		next := cur.Partner
		if next == nil {
			return nil, status.COM_TIM
		}
		cur = next
	}
	return cur, status.SUCCESS
}

// bindHelper records that server is now running on the CPU's currently
// charged SC, so a later reply can release it and check LastRef.
func (c *CPU) bindHelper(server *Ec) {
	if c.runningSc == nil {
		return
	}
	server.Helping = c.runningSc
	c.runningSc.addHelper()
}

// lookupEventPortal resolves ec's event portal for the given vector
// (Evt + vector, spec §GLOSSARY "Event base"), returning nil if the
// capability is absent or not a Pt.
func (c *CPU) lookupEventPortal(ec *Ec, vector uint64) *Pt {
	owner, _, ok := ec.Pd.Objects.Lookup(ec.Evt + vector)
	if !ok {
		return nil
	}
	pt, _ := owner.(*Pt)
	return pt
}

// xferItems copies up to maxItems typed items from sender's UTCB into
// receiver's space via delegation (spec §4.4 "Typed items"). Both xlt
// and del items create a donor-linked child mapping in the receiver's
// space: crd.Item.Xlt is not consulted, so both reduce to the same
// Pd.Delegate call here (recorded in DESIGN.md's simplifications for
// ipc.go).
func xferItems(sender, receiver *Ec) error {
	items := sender.Utcb.Items
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	for _, it := range items {
		if _, err := receiver.Pd.Delegate(sender.Pd, it.Region, it.Hotspot, false); err != nil {
			return err
		}
	}
	return nil
}
