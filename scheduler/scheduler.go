// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scheduler batches deferred GPU commands and exposes the tick
// timeline the query cache keys slot reuse and readback ordering off.
//
// Commands are recorded as closures against a not-yet-created command
// buffer. Flush materializes the batch: it begins a command buffer, replays
// the recorded closures into it, and submits it signaling the batch's tick.
// The tick counter starts at 1 and advances once per flush, so CurrentTick
// always names the batch still being built and every signaled tick is
// strictly below it.
package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/querycache/driver"
	"github.com/gogpu/querycache/internal/metrics"
)

// waitSlice bounds a single device wait; waits loop until the tick lands.
const waitSlice = 5 * time.Second

// Scheduler owns the command batch being built and the submission tick
// counter. Recording and flushing are expected on a single submitting
// goroutine; the mutex keeps misuse from corrupting the batch, and tick
// reads are safe from any goroutine.
type Scheduler struct {
	dev  driver.Device
	tick atomic.Uint64

	mu      sync.Mutex
	pending []func(driver.CommandBuffer)
}

// New creates a scheduler driving the given device. The first batch carries
// tick 1; tick 0 is reserved as "nothing completed".
func New(dev driver.Device) *Scheduler {
	s := &Scheduler{dev: dev}
	s.tick.Store(1)
	return s
}

// CurrentTick returns the tick of the batch currently being built.
func (s *Scheduler) CurrentTick() uint64 {
	return s.tick.Load()
}

// CompletedTick returns the highest tick the GPU has finished.
func (s *Scheduler) CompletedTick() uint64 {
	return s.dev.CompletedTick()
}

// Record appends a deferred command to the current batch. The closure runs
// when the batch is flushed, against the command buffer being recorded.
func (s *Scheduler) Record(f func(driver.CommandBuffer)) {
	s.mu.Lock()
	s.pending = append(s.pending, f)
	s.mu.Unlock()
}

// Flush submits the current batch, signaling the device timeline with the
// batch's tick, and advances the tick. An empty batch is still submitted so
// the timeline keeps moving. Synchronous with respect to acceptance: when
// Flush returns nil the batch has been handed to the device, though the GPU
// may not have executed it yet.
//
// On error the recorded commands are dropped, not retried, and the tick
// does not advance.
func (s *Scheduler) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmds := s.pending
	s.pending = nil

	tick := s.tick.Load()
	cb, err := s.dev.NewCommandBuffer()
	if err != nil {
		return fmt.Errorf("scheduler: begin batch %d: %w", tick, err)
	}
	for _, f := range cmds {
		f(cb)
	}
	if err := s.dev.Submit(cb, tick); err != nil {
		return fmt.Errorf("scheduler: submit batch %d: %w", tick, err)
	}
	s.tick.Add(1)
	metrics.Flushes.Inc()
	slogger().Debug("scheduler: flushed batch", "tick", tick, "commands", len(cmds))
	return nil
}

// Finish flushes the current batch and blocks until the GPU has executed it.
func (s *Scheduler) Finish() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.Wait(s.tick.Load() - 1)
}

// Wait blocks until the GPU reaches tick. The wait is unbounded; it returns
// early only if the device reports an error.
func (s *Scheduler) Wait(tick uint64) error {
	for {
		ok, err := s.dev.WaitTick(tick, waitSlice)
		if err != nil {
			return fmt.Errorf("scheduler: wait for tick %d: %w", tick, err)
		}
		if ok {
			return nil
		}
		slogger().Debug("scheduler: still waiting for GPU", "tick", tick)
	}
}
