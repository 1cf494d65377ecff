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

// ExitReason identifies why KVM_RUN returned control to userspace, read
// out of the exitReason field of the mmap'd kvm_run structure.
type ExitReason uint32

const (
	ExitUnknown      ExitReason = 0
	ExitException    ExitReason = 1
	ExitIO           ExitReason = 2
	ExitHypercall    ExitReason = 3
	ExitDebug        ExitReason = 4
	ExitHLT          ExitReason = 5
	ExitMMIO         ExitReason = 6
	ExitIRQWinOpen   ExitReason = 7
	ExitShutdown     ExitReason = 8
	ExitFailEntry    ExitReason = 9
	ExitIntr         ExitReason = 10
	ExitInternalErr  ExitReason = 17
	ExitSystemEvent  ExitReason = 24
)

// runData mirrors the portion of struct kvm_run this package reads. The
// mmap region is much larger (it carries per-exit-kind union payloads
// starting at byte offset 32), but a microkernel core only needs the
// exit reason: payload decoding (I/O port, MMIO address) belongs to
// whatever built the guest, not to this VCPU shim.
type runData struct {
	requestInterruptWindow uint8
	immediateExit          uint8
	_                      [6]uint8
	exitReason             uint32
	readyForInterrupt      uint8
	ifFlag                 uint8
	flags                  uint16
	cr8                    uint64
	apicBase               uint64
}

func (r *runData) reason() ExitReason {
	return ExitReason(r.exitReason)
}
