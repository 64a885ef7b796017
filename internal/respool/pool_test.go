// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package respool

import (
	"errors"
	"testing"
)

// fakeTicks is a TickSource with directly settable values.
type fakeTicks struct {
	current   uint64
	completed uint64
}

func (f *fakeTicks) CurrentTick() uint64   { return f.current }
func (f *fakeTicks) CompletedTick() uint64 { return f.completed }

// growRecorder counts growth calls and optionally fails.
type growRecorder struct {
	calls [][2]int
	err   error
}

func (g *growRecorder) grow(begin, end int) error {
	if g.err != nil {
		return g.err
	}
	g.calls = append(g.calls, [2]int{begin, end})
	return nil
}

func TestCommitGrowsEmptyPool(t *testing.T) {
	ticks := &fakeTicks{current: 1}
	rec := &growRecorder{}
	p := New(ticks, 4, rec.grow)

	idx, err := p.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if idx != 0 {
		t.Errorf("first commit = %d, want 0", idx)
	}
	if len(rec.calls) != 1 || rec.calls[0] != [2]int{0, 4} {
		t.Errorf("grow calls = %v, want [[0 4]]", rec.calls)
	}
	if p.Len() != 4 {
		t.Errorf("Len = %d, want 4", p.Len())
	}
}

func TestCommitSequentialThenGrow(t *testing.T) {
	ticks := &fakeTicks{current: 1}
	rec := &growRecorder{}
	p := New(ticks, 4, rec.grow)

	// Four commits fill the first step; the GPU has completed nothing, so
	// every granted slot stays pending.
	for want := 0; want < 4; want++ {
		idx, err := p.Commit()
		if err != nil {
			t.Fatalf("Commit %d: %v", want, err)
		}
		if idx != want {
			t.Errorf("commit = %d, want %d", idx, want)
		}
	}
	if len(rec.calls) != 1 {
		t.Fatalf("grow calls after 4 commits = %d, want 1", len(rec.calls))
	}

	// The fifth commit finds no completed slot and grows exactly once.
	idx, err := p.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if idx != 4 {
		t.Errorf("overflow commit = %d, want 4", idx)
	}
	if len(rec.calls) != 2 || rec.calls[1] != [2]int{4, 8} {
		t.Errorf("grow calls = %v, want second [4 8]", rec.calls)
	}
}

func TestCommitReusesCompletedSlots(t *testing.T) {
	ticks := &fakeTicks{current: 1}
	rec := &growRecorder{}
	p := New(ticks, 2, rec.grow)

	for i := 0; i < 2; i++ {
		if _, err := p.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	// GPU completes tick 1; both slots become candidates again and the
	// scan restarts at the lowest index.
	ticks.completed = 1
	ticks.current = 2
	idx, err := p.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if idx != 0 {
		t.Errorf("reuse commit = %d, want 0", idx)
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2 (no growth on reuse)", p.Len())
	}

	// Slot 0 is now stamped with tick 2, which has not completed; the
	// next commit must skip it.
	idx, err = p.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if idx != 1 {
		t.Errorf("commit after restamp = %d, want 1", idx)
	}
}

func TestCommitGrowFailure(t *testing.T) {
	ticks := &fakeTicks{current: 1}
	boom := errors.New("out of device memory")
	rec := &growRecorder{err: boom}
	p := New(ticks, 4, rec.grow)

	if _, err := p.Commit(); !errors.Is(err, boom) {
		t.Fatalf("Commit error = %v, want %v", err, boom)
	}
	if p.Len() != 0 {
		t.Errorf("Len after failed growth = %d, want 0", p.Len())
	}

	// Clearing the fault lets the same pool grow normally.
	rec.err = nil
	idx, err := p.Commit()
	if err != nil {
		t.Fatalf("Commit after recovery: %v", err)
	}
	if idx != 0 || p.Len() != 4 {
		t.Errorf("recovered commit = %d len %d, want 0 len 4", idx, p.Len())
	}
}
