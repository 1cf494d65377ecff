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

// Package status defines the fixed set of hypercall status codes
// returned to user space (spec §6) and a small Error type distinguishing
// them from Go's ambient error type, mirroring
// gvisor.dev/gvisor/pkg/syserr's separation between sandbox-internal
// errors and host errno values.
package status

// Code is a hypercall status code, returned in the syscall result
// register. SUCCESS is the zero value so a freshly zeroed Sys_regs reads
// as success, matching the original kernel's register layout.
type Code uint8

const (
	SUCCESS Code = iota
	COM_TIM
	COM_ABT
	BAD_HYP
	BAD_CAP
	BAD_PAR
	BAD_CPU
	BAD_DEV
	BAD_FTR
	OOM
)

var names = map[Code]string{
	SUCCESS: "SUCCESS",
	COM_TIM: "COM_TIM",
	COM_ABT: "COM_ABT",
	BAD_HYP: "BAD_HYP",
	BAD_CAP: "BAD_CAP",
	BAD_PAR: "BAD_PAR",
	BAD_CPU: "BAD_CPU",
	BAD_DEV: "BAD_DEV",
	BAD_FTR: "BAD_FTR",
	OOM:     "OOM",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "UNKNOWN_STATUS"
}

// Error wraps a Code as a Go error, for internal plumbing (e.g. MDB
// insert failures) that needs to travel through functions returning
// `error` before being translated back to a Code at the syscall
// boundary. It deliberately does not implement Unwrap: status codes are
// a closed, flat set and should never be chained.
type Error struct {
	Code Code
	msg  string
}

// New constructs an Error for the given code with an additional
// diagnostic message (logged, never shown to user space).
func New(c Code, msg string) *Error {
	return &Error{Code: c, msg: msg}
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.msg
}

// ToCode extracts the Code from err, defaulting to BAD_PAR for any error
// that did not originate from this package — a syscall handler should
// never let an un-translated error reach user space silently as SUCCESS.
func ToCode(err error) Code {
	if err == nil {
		return SUCCESS
	}
	if se, ok := err.(*Error); ok {
		return se.Code
	}
	return BAD_PAR
}
