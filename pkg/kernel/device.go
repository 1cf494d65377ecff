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

// Pci, Ioapic, and AcpiDmar are the narrow external-collaborator
// interfaces ASSIGN_PCI/IRQ_CTRL/MACHINE_CTRL forward to (spec §1
// "external, narrow interfaces"; SPEC_FULL §7 domain expansion). Real
// ACPI/DMAR table parsing and IOAPIC/MSI programming stay out of this
// core — a caller (cmd/hedron, or a test) supplies an implementation.
type Pci interface {
	// AssignDevice binds a PCI device (bdf) to pd under the DMAR unit
	// named by dmarID, or returns false if the device or DMAR unit is
	// unknown.
	AssignDevice(bdf uint32, dmarID uint32, pd *Pd) bool
}

type Ioapic interface {
	// ConfigureVector programs one IOAPIC/MSI/LVT vector entry; ok is
	// false if the pin or vector is out of range.
	ConfigureVector(pin uint32, vector uint8, level, activeLow bool) bool
	MaskVector(pin uint32, masked bool) bool
}

type AcpiDmar interface {
	// Suspend and UpdateMicrocode implement MACHINE_CTRL's two sub-ops.
	// Both require Passthrough, checked by the caller before this is
	// invoked.
	Suspend() bool
	UpdateMicrocode(blob []byte) bool
}

// Devices bundles the three collaborator interfaces a Kernel is wired
// to; nil fields mean "not wired," and the corresponding syscalls
// return BAD_DEV.
type Devices struct {
	Pci      Pci
	Ioapic   Ioapic
	Machine  AcpiDmar
}
