// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

import "testing"

func TestStreamEnableDisableChains(t *testing.T) {
	c, _, _ := newTestCache(t)
	s := c.Stream(KindOcclusion)
	if s.Enabled() {
		t.Fatal("new stream reports enabled")
	}

	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	first := s.Current()
	if first == nil || !s.Enabled() {
		t.Fatal("Enable did not open a counter")
	}
	if err := s.Enable(); err != nil {
		t.Fatalf("redundant Enable: %v", err)
	}
	if s.Current() != first {
		t.Fatal("redundant Enable replaced the open counter")
	}

	s.Disable()
	if s.Enabled() {
		t.Fatal("Disable left the stream enabled")
	}
	if !first.Ended() {
		t.Fatal("Disable did not end the counter")
	}
	if s.Last() != first {
		t.Fatal("Disable did not retain the counter as last")
	}
	s.Disable() // no-op

	if err := s.Enable(); err != nil {
		t.Fatalf("re-Enable: %v", err)
	}
	second := s.Current()
	if second.dependency != first {
		t.Fatal("re-enabled counter not chained onto the previous one")
	}
	if second.depth != 1 {
		t.Fatalf("chained depth = %d, want 1", second.depth)
	}
}

func TestStreamUpdate(t *testing.T) {
	c, _, _ := newTestCache(t)
	s := c.Stream(KindOcclusion)

	if err := s.Update(true); err != nil {
		t.Fatalf("Update(true): %v", err)
	}
	if !s.Enabled() {
		t.Fatal("Update(true) did not enable")
	}
	if err := s.Update(false); err != nil {
		t.Fatalf("Update(false): %v", err)
	}
	if s.Enabled() {
		t.Fatal("Update(false) did not disable")
	}
}

func TestStreamResetClosesChain(t *testing.T) {
	c, _, _ := newTestCache(t)
	s := c.Stream(KindOcclusion)
	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	s.Disable()
	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	cur, last := s.Current(), s.Last()

	s.Reset()
	if s.Current() != nil || s.Last() != nil {
		t.Fatal("Reset kept counter references")
	}
	if !cur.released || !last.released {
		t.Fatal("Reset did not release the chain's slots")
	}
}
