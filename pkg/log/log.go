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

// Package log provides a leveled logger for the kernel. It replaces the
// original kernel's trace()/panic() call sites: Debugf is for
// per-IPC/per-schedule chatter (compiled in, gated by Level), Infof for
// one-time boot/object-lifecycle events, Warningf for recoverable
// anomalies (help-chain timeouts, retried faults), and CPUPanic for the
// kernel-bug and #DF cases that die() and panic() covered in the original.
package log

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Level is a verbosity level, checked before formatting to keep hot paths
// (IPC, schedule) cheap when disabled.
type Level int32

const (
	// Warning is always emitted.
	Warning Level = iota
	// Info is emitted for boot and object lifecycle events.
	Info
	// Debug is emitted on IPC and scheduler hot paths; off by default.
	Debug
)

var level atomic.Int32

// SetLevel changes the global verbosity level. Safe to call concurrently;
// callers on the fast path only ever read it via atomic load.
func SetLevel(l Level) {
	level.Store(int32(l))
}

func enabled(l Level) bool {
	return int32(l) <= level.Load()
}

// Emitter is the sink for formatted log lines. The default emitter writes
// to stderr; a boot-time serial emitter (external collaborator, see
// spec §1) can be substituted by assigning DefaultEmitter.
type Emitter interface {
	Emit(l Level, line string)
}

// writerEmitter writes lines to an *os.File, one per Emit call.
type writerEmitter struct {
	f *os.File
}

func (w writerEmitter) Emit(_ Level, line string) {
	fmt.Fprintln(w.f, line)
}

// DefaultEmitter is used by the package-level Debugf/Infof/Warningf
// helpers. Tests may swap it for a capturing emitter.
var DefaultEmitter Emitter = writerEmitter{f: os.Stderr}

func emit(l Level, tag byte, format string, v ...any) {
	if !enabled(l) {
		return
	}
	now := time.Now()
	line := fmt.Sprintf("%c%02d%02d %02d:%02d:%02d.%06d %s",
		tag, now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), now.Nanosecond()/1000,
		fmt.Sprintf(format, v...))
	DefaultEmitter.Emit(l, line)
}

// Debugf logs a Debug-level line.
func Debugf(format string, v ...any) { emit(Debug, 'D', format, v...) }

// Infof logs an Info-level line.
func Infof(format string, v ...any) { emit(Info, 'I', format, v...) }

// Warningf logs a Warning-level line. Always emitted regardless of level.
func Warningf(format string, v ...any) { emit(Warning, 'W', format, v...) }

// CPUPanic reports a kernel-internal invariant failure on the current CPU
// and panics. It mirrors the original kernel's die()/panic() for bugs
// that are not exposed to user space as a status code. Nothing in this
// module recovers the panic, so it ends the whole process, not only the
// CPU that hit the bug.
func CPUPanic(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	DefaultEmitter.Emit(Warning, "PANIC: "+msg)
	panic(msg)
}
