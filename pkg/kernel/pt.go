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

// Pt is a Portal: (server-EC, entry instruction pointer, message-
// transfer descriptor, id) (spec §3). It must be bound to a local EC
// (Glb=false) on one CPU; a call through it transfers control to that
// EC, with the portal id and entry ip loaded into the server's register
// frame.
type Pt struct {
	Kobject

	Ec  *Ec
	Ip  uint64
	Mtd Mtd
	Id  uint64
}

// NewPt constructs a portal bound to a local server EC. It panics if ec
// is a global EC: binding a Glb EC as a portal server is a caller bug
// (CREATE_PT validates this before construction at the syscall
// boundary, see syscall.go).
func NewPt(owner *Pd, ec *Ec, ip uint64, mtd Mtd, id uint64) *Pt {
	if ec.Glb {
		panic("kernel: Pt bound to a global EC")
	}
	p := &Pt{Ec: ec, Ip: ip, Mtd: mtd, Id: id}
	p.initKobject(TypePT, owner)
	return p
}
