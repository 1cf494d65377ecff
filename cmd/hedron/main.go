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

// Command hedron boots the kernel core: it builds a kernel.Kernel sized
// by pkg/hvconfig, brings every modeled CPU up concurrently, constructs
// the root PD's first global EC/SC pair, and drives each CPU's
// ReturnToUser loop. ELF loading of the actual root task is out of
// scope (spec §1's "narrow external interfaces, never fully
// implemented" list) — the root EC's entry point is a placeholder
// address a real loader would overwrite before the first resume.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tfc/hedron/pkg/hvconfig"
	"github.com/tfc/hedron/pkg/kernel"
	"github.com/tfc/hedron/pkg/log"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	hvconfig.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := hvconfig.FromFlags(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootEntry is the placeholder IP/SP the root EC starts with. A real
// deployment's loader (out of scope here) overwrites these before
// resuming the EC for the first time.
const (
	rootEntry = 0x200000
	rootStack = 0x7fff0000
)

func run(cfg hvconfig.Config) error {
	log.Infof("hedron: booting %d CPU(s), passthrough=%v", cfg.NumCPU, cfg.Passthrough)

	k := kernel.NewKernel(cfg.NumCPU, kernel.Devices{})
	k.Root.Passthrough = cfg.Passthrough

	root := kernel.NewGlobalEc(k.Root, 0, 0)
	root.Regs.Rip = rootEntry
	root.Regs.Rsp = rootStack
	rootPrio := kernel.NumPriorities - 1
	quantum := time.Duration(cfg.Quantum(rootPrio)) * time.Microsecond
	sc := kernel.NewSc(k.Root, root, 0, rootPrio, quantum)
	root.Sc = sc
	root.Cont = kernel.ToUser(kernel.RetSysexit)
	k.CPU(0).Enqueue(sc)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < cfg.NumCPU; i++ {
		cpu := k.CPU(i)
		g.Go(func() error {
			return runCPU(ctx, cpu)
		})
	}
	return g.Wait()
}

// runCPU drives one CPU's continuation dispatch loop until it halts for
// good (TrapDead) or the boot context is cancelled by a sibling CPU's
// fatal error, mirroring errgroup's fate-sharing cancellation (spec §2
// domain expansion: "one goroutine per modeled CPU, fate-shared,
// cancelled together on a fatal boot error").
func runCPU(ctx context.Context, cpu *kernel.CPU) error {
	ec := cpu.Current()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		trap := cpu.ReturnToUser(ec)
		switch trap.Kind {
		case kernel.TrapDead:
			log.Infof("cpu%d: halted permanently", cpu.ID())
			return nil
		case kernel.TrapHalt:
			// Nothing runnable; a real boot would hlt here and wait for
			// an IPI. This core has no hardware idle instruction to
			// execute, so it just re-enters the dispatch loop, which
			// will observe RemoteEnqueue's hazard bit once set.
			ec = cpu.Current()
		case kernel.TrapToUser:
			// No ring transition to simulate: immediately "return" by
			// letting the dispatch loop continue, since CPU.Current()
			// has already been updated to whatever runs next by the
			// scheduler or a later syscall.
			ec = cpu.Current()
		}
	}
}
