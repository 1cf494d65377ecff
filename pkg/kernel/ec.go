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

// Ec is an Execution Context: a thread-like entity pinned to a CPU
// (spec §3). Partner and Rcap are back-pointers, not ownership (spec
// Design Notes): they are plain *Ec fields here, but EC destruction
// (not modeled fully in this core) must clear them in every EC that
// holds one, exactly as it must in the original.
type Ec struct {
	Kobject

	Pd  *Pd
	CPU int

	// Glb is true for an EC scheduled on its own SC; false for a local
	// EC that exists only to handle portal invocations on the caller's
	// donated time (spec §3, §GLOSSARY "Local EC").
	Glb bool

	Utcb Utcb
	Regs Regs

	// Cont is the next kernel action on return to user (spec §3, §4.6).
	Cont Continuation

	// Partner is set while donating execution through IPC: the EC this
	// EC is currently sending time/control to.
	Partner *Ec

	// Rcap is the caller-EC in a portal call: the reverse capability a
	// server EC replies to.
	Rcap *Ec

	// Sc is the SC currently bound to a Glb EC; nil for a local EC,
	// which runs on whichever SC its caller donated.
	Sc *Sc

	// Helping is, for a local EC currently activated through a call or
	// send_msg, the SC whose time it is running on — recorded so reply
	// can delHelper it and check LastRef (spec §4.4 step 4). nil once
	// the EC has replied.
	Helping *Sc

	// Evt is this EC's event base: exception portals are looked up at
	// Evt+vector (spec §GLOSSARY).
	Evt uint64

	Fpu Kp
}

// NewGlobalEc constructs a Glb EC bound to its own SC, the kind created
// by CREATE_EC without a local-only flag.
func NewGlobalEc(owner *Pd, cpu int, evt uint64) *Ec {
	e := &Ec{Pd: owner, CPU: cpu, Glb: true, Evt: evt}
	e.initKobject(TypeEC, owner)
	e.Cont = Idle
	return e
}

// NewLocalEc constructs a local EC (Glb=false): callable only through
// portals, with an entry continuation installed once a Pt binds it.
func NewLocalEc(owner *Pd, cpu int, evt uint64) *Ec {
	e := &Ec{Pd: owner, CPU: cpu, Glb: false, Evt: evt}
	e.initKobject(TypeEC, owner)
	// A local EC starts with no pending continuation: Cont stays
	// ContNone until a call or send_msg binds it as a server.
	return e
}

// Busy reports whether this EC currently has a continuation installed,
// i.e. it is mid-handler or mid-IPC and cannot accept a new call
// directly (spec §4.4 step 2 "Check P's server EC has no pending
// continuation").
func (e *Ec) Busy() bool { return !e.Cont.IsNone() }

// SetPartner links e to partner, mirroring Ec::set_partner. It only
// assigns e.Partner; a prior partner, if any, is left untouched.
func (e *Ec) SetPartner(partner *Ec) { e.Partner = partner }

// ClrPartner clears e's partner link and reports whether one was
// present, mirroring Ec::clr_partner.
func (e *Ec) ClrPartner() bool {
	had := e.Partner != nil
	e.Partner = nil
	return had
}

// Blocked reports whether e is currently not runnable on its own —
// true for any local EC with no SC of its own. Partner links are not
// consulted.
func (e *Ec) Blocked() bool {
	return !e.Glb && e.Sc == nil
}
