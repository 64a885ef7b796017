// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

import (
	"errors"
	"fmt"

	"github.com/gogpu/querycache/driver"
	"github.com/gogpu/querycache/internal/metrics"
)

// maxCounterDepth bounds the dependency chain length. Creating a counter
// past the bound resolves its dependency eagerly so chains cannot grow
// without limit (and teardown never recurses deeply).
const maxCounterDepth = 96

// HostCounter is one in-flight logical query. It leases exactly one slot
// for its whole life and releases it exactly once, when closed.
//
// Lifecycle: created with begin/reset commands recorded onto the current
// batch, ended once via EndQuery, then read any number of times. Reads are
// memoized; the first one may flush the scheduler and block on the GPU.
// Counters of one kind form a dependency chain: a counter's accumulated
// value is its own hardware count plus its dependency's accumulated value,
// and resolving folds the chain away.
type HostCounter struct {
	cache      *Cache
	kind       Kind
	handle     Handle
	tick       uint64
	dependency *HostCounter
	depth      uint64

	// base carries values folded in from collapsed dependencies.
	base      uint64
	result    uint64
	hasResult bool

	ended    bool
	released bool
	arenaIdx int
}

// Kind returns the counter kind.
func (c *HostCounter) Kind() Kind { return c.kind }

// Tick returns the scheduler tick the counter was created under.
func (c *HostCounter) Tick() uint64 { return c.tick }

// Handle returns the leased slot.
func (c *HostCounter) Handle() Handle { return c.handle }

// Ended reports whether EndQuery has run.
func (c *HostCounter) Ended() bool { return c.ended }

// EndQuery records the stop-counting command for this counter's slot onto
// the current batch. Only the first call records; the counter stream is
// the usual caller and calls it exactly once.
func (c *HostCounter) EndQuery() {
	if c.ended || c.released {
		return
	}
	c.ended = true
	h := c.handle
	c.cache.sched.Record(func(cb driver.CommandBuffer) {
		cb.EndQuery(h.Set(), h.Index())
	})
}

// BlockingQuery reads this counter's own hardware value, without the
// dependency chain. If the batch holding the counter's commands has not
// been submitted yet (creation tick not passed by the scheduler), the
// scheduler is flushed first, exactly once. The readback then waits until
// the GPU has produced the value, blocking the calling goroutine for as
// long as that takes.
//
// On device loss the device is notified once and the error wraps
// driver.ErrDeviceLost; any other readback failure wraps ErrReadback.
// Neither is retried.
func (c *HostCounter) BlockingQuery() (uint64, error) {
	if c.released {
		return 0, ErrCounterClosed
	}
	metrics.BlockingQueries.Inc()
	if c.tick >= c.cache.sched.CurrentTick() {
		if err := c.cache.sched.Flush(); err != nil {
			return 0, fmt.Errorf("querycache: flush before readback: %w", err)
		}
	}
	v, err := c.cache.dev.QueryResult(c.handle.set, c.handle.index)
	if err != nil {
		if errors.Is(err, driver.ErrDeviceLost) {
			c.cache.dev.ReportLoss()
			metrics.DeviceLosses.Inc()
			slogger().Warn("querycache: device lost during readback", "kind", c.kind, "tick", c.tick)
			return 0, fmt.Errorf("querycache: blocking query: %w", err)
		}
		return 0, fmt.Errorf("%w: %v", ErrReadback, err)
	}
	return v, nil
}

// Query returns the accumulated value: this counter's hardware count plus
// everything folded in from its dependency chain. The first call resolves
// (and may block); later calls return the memoized result. Resolving
// closes the dependency, so a resolved counter keeps no references into
// the chain.
func (c *HostCounter) Query() (uint64, error) {
	if c.hasResult {
		return c.result, nil
	}
	v, err := c.BlockingQuery()
	if err != nil {
		return 0, err
	}
	sum := c.base + v
	if c.dependency != nil {
		dv, err := c.dependency.Query()
		if err != nil {
			return 0, err
		}
		sum += dv
		c.dependency.Close()
		c.dependency = nil
	}
	c.result = sum
	c.hasResult = true
	return c.result, nil
}

// Close releases the counter's slot back to its pool. Safe to call more
// than once; only the first call releases. A counter that other counters
// still depend on must be resolved before it is closed, which the chain
// logic guarantees for counters it closes itself.
func (c *HostCounter) Close() {
	c.cache.releaseCounter(c)
}
