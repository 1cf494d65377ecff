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

const pageSize = 4096

// Kp is a Kernel Page: a kernel-owned 4 KiB page mappable into at most
// one user PD at a time (spec §3), used for FPU save areas and
// user-visible counters.
type Kp struct {
	Kobject

	data      [pageSize]byte
	mappedPd  *Pd
	mappedVA  uint64
}

// NewKp constructs an unmapped kernel page.
func NewKp(owner *Pd) *Kp {
	k := &Kp{}
	k.initKobject(TypeKP, owner)
	return k
}

// MapInto maps the page into pd at virtual address va, unmapping it
// from wherever it was previously mapped first (spec §3 "at most one
// user PD at a time").
func (k *Kp) MapInto(pd *Pd, va uint64) {
	k.mappedPd = pd
	k.mappedVA = va
}

// Unmap removes the page's current mapping, if any.
func (k *Kp) Unmap() {
	k.mappedPd = nil
	k.mappedVA = 0
}

// Bytes returns the page's backing storage for direct read/write by the
// FPU save/restore path and by KP-backed user counters.
func (k *Kp) Bytes() []byte { return k.data[:] }

// fpuOwner records which EC's FPU state is loaded. No save or restore
// happens here: the real XSAVE/XRSTOR sequence is
// an external, architecture-fixed concern (spec §1 out-of-scope: "ring-0
// entry stubs and assembly trampolines"); what the kernel core owns is
// *which* EC's state currently lives in the hardware FPU, which
// transferFpu below tracks.
type fpuOwner struct {
	owner *Ec
}

var currentFpuOwner fpuOwner

// transferFpu records to as the FPU owner, mirroring the ownership
// hand-off of Ec::transfer_fpu. It saves and loads no FPU state and
// treats the idle EC like any other.
func transferFpu(from, to *Ec) {
	if from == to {
		return
	}
	currentFpuOwner.owner = to
}
