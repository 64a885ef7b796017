// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/querycache/driver"
)

// fakeCommandBuffer records which commands were replayed into it.
type fakeCommandBuffer struct {
	ops []string
}

func (f *fakeCommandBuffer) ResetQuerySet(driver.QuerySet, int, int) { f.ops = append(f.ops, "reset") }
func (f *fakeCommandBuffer) BeginQuery(driver.QuerySet, int, bool)   { f.ops = append(f.ops, "begin") }
func (f *fakeCommandBuffer) EndQuery(driver.QuerySet, int)           { f.ops = append(f.ops, "end") }
func (f *fakeCommandBuffer) EmitSamples(uint64)                      { f.ops = append(f.ops, "emit") }

type fakeSubmit struct {
	tick     uint64
	commands int
}

// fakeDevice implements driver.Device for scheduler tests. Submitted ticks
// complete immediately unless lag is set.
type fakeDevice struct {
	mu        sync.Mutex
	completed uint64
	submits   []fakeSubmit
	waits     []uint64
	submitErr error
	lag       bool
}

func (d *fakeDevice) CreateQuerySet(kind driver.QueryKind, count int) (driver.QuerySet, error) {
	return nil, errors.New("not implemented")
}
func (d *fakeDevice) DestroyQuerySet(driver.QuerySet) {}
func (d *fakeDevice) NewCommandBuffer() (driver.CommandBuffer, error) {
	return &fakeCommandBuffer{}, nil
}

func (d *fakeDevice) Submit(cb driver.CommandBuffer, signalTick uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitErr != nil {
		return d.submitErr
	}
	fcb := cb.(*fakeCommandBuffer)
	d.submits = append(d.submits, fakeSubmit{tick: signalTick, commands: len(fcb.ops)})
	if !d.lag {
		d.completed = signalTick
	}
	return nil
}

func (d *fakeDevice) WaitTick(tick uint64, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waits = append(d.waits, tick)
	if d.lag {
		// Simulate the GPU catching up after one wait slice.
		d.completed = tick
		d.lag = false
		return false, nil
	}
	return d.completed >= tick, nil
}

func (d *fakeDevice) CompletedTick() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

func (d *fakeDevice) QueryResult(driver.QuerySet, int) (uint64, error) {
	return 0, errors.New("not implemented")
}
func (d *fakeDevice) ReportLoss() {}
func (d *fakeDevice) Lost() bool  { return false }
func (d *fakeDevice) Destroy()    {}

func TestTickStartsAtOne(t *testing.T) {
	s := New(&fakeDevice{})
	if got := s.CurrentTick(); got != 1 {
		t.Errorf("CurrentTick = %d, want 1", got)
	}
	if got := s.CompletedTick(); got != 0 {
		t.Errorf("CompletedTick = %d, want 0", got)
	}
}

func TestFlushSubmitsRecordedCommands(t *testing.T) {
	dev := &fakeDevice{}
	s := New(dev)

	s.Record(func(cb driver.CommandBuffer) { cb.BeginQuery(nil, 0, true) })
	s.Record(func(cb driver.CommandBuffer) { cb.EmitSamples(10) })
	s.Record(func(cb driver.CommandBuffer) { cb.EndQuery(nil, 0) })

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(dev.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(dev.submits))
	}
	if dev.submits[0].tick != 1 || dev.submits[0].commands != 3 {
		t.Errorf("submit = %+v, want tick 1 with 3 commands", dev.submits[0])
	}
	if got := s.CurrentTick(); got != 2 {
		t.Errorf("CurrentTick after flush = %d, want 2", got)
	}

	// The batch was consumed: a second flush submits an empty batch.
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if dev.submits[1].tick != 2 || dev.submits[1].commands != 0 {
		t.Errorf("second submit = %+v, want empty batch at tick 2", dev.submits[1])
	}
}

func TestFlushErrorKeepsTick(t *testing.T) {
	boom := errors.New("queue rejected submission")
	dev := &fakeDevice{submitErr: boom}
	s := New(dev)

	s.Record(func(cb driver.CommandBuffer) { cb.EmitSamples(1) })
	if err := s.Flush(); !errors.Is(err, boom) {
		t.Fatalf("Flush error = %v, want %v", err, boom)
	}
	if got := s.CurrentTick(); got != 1 {
		t.Errorf("CurrentTick after failed flush = %d, want 1", got)
	}

	// Failed batches are dropped, not retried.
	dev.submitErr = nil
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if dev.submits[0].commands != 0 {
		t.Errorf("retry submitted %d commands, want 0 (dropped)", dev.submits[0].commands)
	}
}

func TestFinishWaitsForSubmittedBatch(t *testing.T) {
	dev := &fakeDevice{}
	s := New(dev)

	s.Record(func(cb driver.CommandBuffer) { cb.EmitSamples(1) })
	if err := s.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(dev.waits) == 0 || dev.waits[0] != 1 {
		t.Errorf("waits = %v, want first wait for tick 1", dev.waits)
	}
}

func TestWaitLoopsUntilTickReached(t *testing.T) {
	dev := &fakeDevice{lag: true}
	s := New(dev)

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := s.Wait(1); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(dev.waits) != 2 {
		t.Errorf("device waits = %d, want 2 (one timeout, one success)", len(dev.waits))
	}
}
