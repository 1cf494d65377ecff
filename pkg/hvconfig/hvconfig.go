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

// Package hvconfig carries the boot parameters cmd/hedron reads before
// constructing a kernel.Kernel, in the style of runsc/config: one flat
// struct, registered against a flag.FlagSet and overridable by
// environment variables, rather than scattered package-level flags
// (spec §2 "(ambient) Configuration").
package hvconfig

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Config is every boot-time knob this core reads. Fields marked "read but
// not acted upon" are accepted and validated so a real deployment's
// command line parses cleanly, but this core's narrow external
// interfaces (pkg/kernel.Devices) are where any actual DMAR/IOAPIC
// programming would happen — never here (spec §9 Open Questions, "DMAR
// table parsing is a documented no-op").
type Config struct {
	// NumCPU is the number of CPUs to bring up, one kernel.CPU and one
	// idle EC each.
	NumCPU int

	// Passthrough grants the root PD PCI/IRQ/MSR access at boot, the seed
	// every other passthrough-capable PD is later delegated from.
	Passthrough bool

	// Quanta is the scheduler time-slice table, indexed by priority
	// (spec §4.5). A zero-length table means every priority gets the
	// default quantum; entries beyond len(Quanta) fall back to the same
	// default.
	Quanta []int

	// HPET and IOMMU are accepted for command-line compatibility with a
	// real deployment's boot parameters; this core does not act on
	// either (no timer hardware model, no DMAR parsing).
	HPET  bool
	IOMMU bool
}

// defaultQuantum is applied to priorities Quanta does not cover.
const defaultQuantum = 10000

// Default returns the single-CPU, no-passthrough configuration FromFlags
// starts from.
func Default() Config {
	return Config{NumCPU: 1}
}

// RegisterFlags registers fs's flags the way runsc/config.RegisterFlags
// does: one flag per Config field, read back into a Config by FromFlags.
func RegisterFlags(fs *flag.FlagSet) {
	fs.Int("num-cpu", 1, "number of CPUs to bring up")
	fs.Bool("passthrough", false, "grant the root PD PCI/IRQ/MSR passthrough at boot")
	fs.String("quanta", "", "comma-separated per-priority scheduler quantum table, in microseconds")
	fs.Bool("hpet", false, "accept an HPET device region (not acted upon)")
	fs.Bool("iommu", false, "accept a DMAR/IOMMU table (not acted upon; parsing stays a no-op)")
}

// FromFlags builds a Config by reading fs's flags after fs.Parse has run,
// then applying HEDRON_-prefixed environment overrides the way a real
// deployment's init system would (spec §2 "flag/env driven").
func FromFlags(fs *flag.FlagSet) (Config, error) {
	cfg := Default()
	if f := fs.Lookup("num-cpu"); f != nil {
		n, err := strconv.Atoi(f.Value.String())
		if err != nil {
			return Config{}, fmt.Errorf("hvconfig: num-cpu: %w", err)
		}
		cfg.NumCPU = n
	}
	if f := fs.Lookup("passthrough"); f != nil {
		cfg.Passthrough = f.Value.String() == "true"
	}
	if f := fs.Lookup("hpet"); f != nil {
		cfg.HPET = f.Value.String() == "true"
	}
	if f := fs.Lookup("iommu"); f != nil {
		cfg.IOMMU = f.Value.String() == "true"
	}
	if f := fs.Lookup("quanta"); f != nil && f.Value.String() != "" {
		q, err := parseQuanta(f.Value.String())
		if err != nil {
			return Config{}, err
		}
		cfg.Quanta = q
	}
	applyEnvOverrides(&cfg)
	if cfg.NumCPU < 1 {
		return Config{}, fmt.Errorf("hvconfig: num-cpu must be >= 1, got %d", cfg.NumCPU)
	}
	return cfg, nil
}

func parseQuanta(s string) ([]int, error) {
	var out []int
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				v, err := strconv.Atoi(s[start:i])
				if err != nil {
					return nil, fmt.Errorf("hvconfig: quanta: %w", err)
				}
				out = append(out, v)
			}
			start = i + 1
		}
	}
	return out, nil
}

// Quantum returns the time slice for priority prio, falling back to
// defaultQuantum when the table doesn't cover it (spec §4.5).
func (c Config) Quantum(prio int) int {
	if prio >= 0 && prio < len(c.Quanta) {
		return c.Quanta[prio]
	}
	return defaultQuantum
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HEDRON_NUM_CPU"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumCPU = n
		}
	}
	if v := os.Getenv("HEDRON_PASSTHROUGH"); v != "" {
		cfg.Passthrough = v == "1" || v == "true"
	}
}
