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

package hvconfig

import (
	"flag"
	"testing"
)

func TestFromFlagsDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := FromFlags(fs)
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.NumCPU != 1 || cfg.Passthrough || cfg.HPET || cfg.IOMMU {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if got := cfg.Quantum(0); got != defaultQuantum {
		t.Fatalf("Quantum(0) = %d, want default %d", got, defaultQuantum)
	}
}

func TestFromFlagsQuanta(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"-quanta=5000,10000,20000", "-num-cpu=4", "-passthrough"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := FromFlags(fs)
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.NumCPU != 4 || !cfg.Passthrough {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if got := cfg.Quantum(1); got != 10000 {
		t.Fatalf("Quantum(1) = %d, want 10000", got)
	}
	if got := cfg.Quantum(99); got != defaultQuantum {
		t.Fatalf("Quantum(99) = %d, want default %d", got, defaultQuantum)
	}
}

func TestFromFlagsRejectsBadNumCPU(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"-num-cpu=0"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := FromFlags(fs); err == nil {
		t.Fatal("FromFlags: expected error for num-cpu=0")
	}
}
