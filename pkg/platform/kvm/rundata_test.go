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

//go:build linux

package kvm

import (
	"testing"
	"unsafe"
)

func TestRunDataReason(t *testing.T) {
	r := &runData{exitReason: uint32(ExitHLT)}
	if got := r.reason(); got != ExitHLT {
		t.Fatalf("reason() = %v, want %v", got, ExitHLT)
	}
}

func TestRunDataLayoutOffset(t *testing.T) {
	// exitReason must sit at byte offset 8 (after the two flag bytes and
	// six bytes of padding) for the mmap cast in CreateVcpu to line up
	// with struct kvm_run's real layout.
	var r runData
	if off := unsafe.Offsetof(r.exitReason); off != 8 {
		t.Fatalf("exitReason offset = %d, want 8", off)
	}
}
