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

// ContKind is the tagged variant spec's Design Notes call for: "the
// kernel reifies 'where to go next on return to user' as a function
// pointer stored in the EC... implementations without function-pointer
// parity should encode this as a tagged variant." Go has function
// values, but the tagged variant is used here anyway because it makes
// EC state inspectable in tests without invoking it (spec §8's
// invariant "at most one of {cont states} is active" is then a simple
// field comparison instead of a pointer-identity check against package-
// level function variables).
type ContKind uint8

const (
	// ContNone marks an EC with no pending continuation: the server side
	// of a portal when it is not mid-handler (Ec.cont == nil in the
	// original). Precondition checked by sys_call before binding a
	// server.
	ContNone ContKind = iota
	ContToUser
	ContIdle
	ContRecvUser
	ContRecvKern
	ContSendMsg
	ContDead
	ContSysFinish
)

// RetMode selects which return-to-user path ContToUser resumes through;
// it matters for hazard handling (ret_user_iret ignores HZD_DS_ES,
// ret_user_sysexit does not) and for recv_kern's fpu/xfer choice
// (exception path loads via load_exc, VM-exit path via load_vmx).
type RetMode uint8

const (
	RetSysexit RetMode = iota // ret_user_sysexit: user syscall return
	RetIret                   // ret_user_iret: exception/IPC-exception return
	RetVMResume               // ret_user_vmresume: VCPU resume
)

// SendKind distinguishes the two send_msg<C> instantiations the
// original kernel generates at compile time: exceptions resume via
// iret, VM exits via vmresume.
type SendKind uint8

const (
	SendExc SendKind = iota
	SendVMExit
)

// Continuation is an EC's "next kernel action on return to user" (spec
// §3, §4.6, §GLOSSARY). The zero value is ContNone.
type Continuation struct {
	Kind     ContKind
	Mode     RetMode  // valid when Kind == ContToUser
	Send     SendKind // valid when Kind == ContSendMsg
	Status   status.Code
	ClrTimeo bool
}

// ToUser constructs the continuation for resuming user/guest execution
// through the named return path.
func ToUser(mode RetMode) Continuation { return Continuation{Kind: ContToUser, Mode: mode} }

// SysFinish constructs the continuation sys_finish uses: set the status
// register and fall through to ret_user_sysexit (spec §4.4, §6).
func SysFinish(code status.Code) Continuation {
	return Continuation{Kind: ContSysFinish, Status: code}
}

var (
	Idle     = Continuation{Kind: ContIdle}
	RecvUser = Continuation{Kind: ContRecvUser}
	RecvKern = Continuation{Kind: ContRecvKern}
	Dead     = Continuation{Kind: ContDead}
)

func sendMsg(kind SendKind) Continuation { return Continuation{Kind: ContSendMsg, Send: kind} }

// IsNone reports whether this is the "no pending continuation" value
// send_msg/sys_call check before binding a local EC as a server.
func (c Continuation) IsNone() bool { return c.Kind == ContNone }
