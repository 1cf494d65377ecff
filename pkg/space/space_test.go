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

package space

import (
	"testing"

	"github.com/tfc/hedron/pkg/crd"
	"github.com/tfc/hedron/pkg/mdb"
)

func TestInsertLookupRoundTrip(t *testing.T) {
	var unmapped []mdb.Node
	s := New(HostMem, func(n mdb.Node) { unmapped = append(unmapped, n) })

	id, err := s.Insert(0x1000, uint64(0xdead000), crd.AttrR|crd.AttrW, 0, 0)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	owner, attrs, ok := s.Lookup(0x1000)
	if !ok {
		t.Fatalf("expected lookup to find inserted mapping")
	}
	if owner.(uint64) != 0xdead000 {
		t.Fatalf("unexpected owner: %v", owner)
	}
	if attrs&crd.AttrW == 0 {
		t.Fatalf("expected write attr preserved")
	}

	s.Revoke(id)
	if len(unmapped) != 1 {
		t.Fatalf("expected unmap hook called once, got %d", len(unmapped))
	}
	if _, _, ok := s.Lookup(0x1000); ok {
		t.Fatalf("expected lookup to miss after revoke")
	}
}

func TestRevokeCleanupTracksRanCPUs(t *testing.T) {
	s := New(GuestMem, nil)
	id, _ := s.Insert(0x2000, nil, crd.AttrR, 0, 0)

	s.MarkRanCPU(0)
	s.MarkRanCPU(3)

	cleanup := s.Revoke(id)

	var shotDown []int
	cleanup.Flush(func(cpu int) { shotDown = append(shotDown, cpu) })

	if len(shotDown) != 2 {
		t.Fatalf("expected shootdown on 2 CPUs, got %v", shotDown)
	}
}

func TestCleanupIgnoreDoesNotPanic(t *testing.T) {
	s := New(HostMem, nil)
	id, _ := s.Insert(0x3000, nil, crd.AttrR, 0, 0)
	cleanup := s.Revoke(id)
	cleanup.Ignore() // must not panic, must not call shootdown
}

func TestCleanupDoubleUseIsRejected(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double-consuming a Cleanup token")
		}
	}()
	s := New(HostMem, nil)
	id, _ := s.Insert(0x4000, nil, crd.AttrR, 0, 0)
	cleanup := s.Revoke(id)
	cleanup.Ignore()
	cleanup.Ignore()
}

func TestCPUSetClearAndCheck(t *testing.T) {
	var cs CPUSet
	cs.Set(5)
	if !cs.Check(5) {
		t.Fatalf("expected bit 5 set")
	}
	if !cs.ClearAndCheck(5) {
		t.Fatalf("expected ClearAndCheck to observe the set bit")
	}
	if cs.Check(5) {
		t.Fatalf("expected bit cleared after ClearAndCheck")
	}
	if cs.ClearAndCheck(5) {
		t.Fatalf("expected second ClearAndCheck to report false")
	}
}
