// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

import (
	"fmt"
	"sync"

	"github.com/gogpu/querycache/driver"
	"github.com/gogpu/querycache/internal/metrics"
)

// Scheduler is the slice of the command scheduler the cache needs: the
// tick timeline, deferred recording, and forced submission. The scheduler
// package provides the real implementation; tests substitute fakes.
type Scheduler interface {
	TickSource

	// Record appends a deferred command to the batch being built.
	Record(func(driver.CommandBuffer))

	// Flush submits all buffered commands, synchronously with respect to
	// acceptance by the device.
	Flush() error
}

// Config parameterizes a Cache.
type Config struct {
	// Device owns the hardware query sets and performs readbacks.
	Device driver.Device

	// Scheduler batches deferred commands and drives the tick timeline.
	Scheduler Scheduler

	// Memory, if set, receives query results written by FlushRegion.
	Memory GuestMemory

	// GrowStep is the slot count added per pool growth; 0 selects
	// DefaultGrowStep.
	GrowStep int
}

// Cache owns one SlotPool and one CounterStream per counter kind and every
// live HostCounter. Counters are held in an index-addressed arena per kind
// so teardown can finalize them explicitly, in order, before the pools are
// destroyed.
type Cache struct {
	mu      sync.Mutex
	dev     driver.Device
	sched   Scheduler
	mem     GuestMemory
	pools   [NumKinds]*SlotPool
	streams [NumKinds]*CounterStream
	arenas  [NumKinds]counterArena
	queries map[uint64]*boundQuery
	closed  bool
}

// counterArena owns the live counters of one kind, addressed by index.
// Freed indices are recycled.
type counterArena struct {
	slots []*HostCounter
	free  []int
}

func (a *counterArena) add(c *HostCounter) int {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx] = c
		return idx
	}
	a.slots = append(a.slots, c)
	return len(a.slots) - 1
}

func (a *counterArena) remove(idx int) {
	a.slots[idx] = nil
	a.free = append(a.free, idx)
}

// New creates a query cache on the given device and scheduler. One slot
// pool per counter kind is created eagerly; hardware allocation happens on
// first use.
func New(cfg Config) (*Cache, error) {
	if cfg.Device == nil {
		return nil, ErrNilDevice
	}
	if cfg.Scheduler == nil {
		return nil, ErrNilScheduler
	}
	c := &Cache{
		dev:     cfg.Device,
		sched:   cfg.Scheduler,
		mem:     cfg.Memory,
		queries: make(map[uint64]*boundQuery),
	}
	for k := range c.pools {
		c.pools[k] = NewSlotPool(cfg.Device, cfg.Scheduler, Kind(k), cfg.GrowStep)
		c.streams[k] = &CounterStream{cache: c, kind: Kind(k)}
	}
	return c, nil
}

// AllocateQuery leases a slot from the pool for kind.
func (c *Cache) AllocateQuery(kind Kind) (Handle, error) {
	if !kind.Valid() {
		panic("querycache: invalid counter kind")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Handle{}, ErrCacheClosed
	}
	return c.pools[kind].Commit()
}

// ReserveQuery releases a slot back to the pool for kind. After Close this
// is a no-op: teardown has already released every slot.
func (c *Cache) ReserveQuery(kind Kind, h Handle) {
	if !kind.Valid() {
		panic("querycache: invalid counter kind")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pools[kind].Reserve(h)
}

// Stream returns the counter stream for kind.
func (c *Cache) Stream(kind Kind) *CounterStream {
	if !kind.Valid() {
		panic("querycache: invalid counter kind")
	}
	return c.streams[kind]
}

// NewCounter starts a logical query of the given kind: it leases a slot,
// snapshots the creation tick, and records reset and precise-begin
// commands onto the current batch. dependency, usually the previously
// ended counter of the stream, links the new counter into the accumulation
// chain and may be nil.
//
// If the chain has reached its depth bound the dependency is resolved
// here instead, which can flush and block like Query.
func (c *Cache) NewCounter(kind Kind, dependency *HostCounter) (*HostCounter, error) {
	if !kind.Valid() {
		panic("querycache: invalid counter kind")
	}
	var base, depth uint64
	if dependency != nil {
		depth = dependency.depth + 1
		if depth > maxCounterDepth {
			v, err := dependency.Query()
			if err != nil {
				return nil, err
			}
			dependency.Close()
			dependency = nil
			base = v
			depth = 0
			metrics.ChainCollapses.Inc()
		}
	}

	h, err := c.AllocateQuery(kind)
	if err != nil {
		return nil, err
	}
	ctr := &HostCounter{
		cache:      c,
		kind:       kind,
		handle:     h,
		tick:       c.sched.CurrentTick(),
		dependency: dependency,
		depth:      depth,
		base:       base,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	ctr.arenaIdx = c.arenas[kind].add(ctr)
	c.mu.Unlock()

	c.sched.Record(func(cb driver.CommandBuffer) {
		cb.ResetQuerySet(h.Set(), h.Index(), 1)
		cb.BeginQuery(h.Set(), h.Index(), true)
	})
	slogger().Debug("querycache: counter created", "kind", kind, "tick", ctr.tick, "depth", depth)
	return ctr, nil
}

// releaseCounter returns a counter's slot to its pool and removes it from
// the arena. Only the first call for a counter does anything.
func (c *Cache) releaseCounter(ctr *HostCounter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr.released {
		return
	}
	ctr.released = true
	c.arenas[ctr.kind].remove(ctr.arenaIdx)
	if !c.closed {
		c.pools[ctr.kind].Reserve(ctr.handle)
	}
}

// Close tears the cache down in dependency-safe order: every stream is
// disabled and reset (recording end commands for open counters and
// releasing the chain), remaining counters in the arenas are released, the
// recorded commands are flushed to the device, and only then are the slot
// pools destroyed. This guarantees no reset, end, or readback ever targets
// a destroyed query set.
//
// Close is idempotent. Pending guest-memory writes that were never flushed
// are dropped.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// End open counting and release the stream chains.
	for k := range c.streams {
		c.streams[k].Disable()
		c.streams[k].Reset()
	}

	// Sweep counters that were created outside the streams.
	c.mu.Lock()
	for k := range c.arenas {
		for _, ctr := range c.arenas[k].slots {
			if ctr == nil {
				continue
			}
			ctr.released = true
			c.pools[ctr.kind].Reserve(ctr.handle)
		}
		c.arenas[k] = counterArena{}
	}
	c.closed = true
	c.queries = nil
	c.mu.Unlock()

	// Push the recorded end commands out while the sets still exist.
	flushErr := c.sched.Flush()

	for k := range c.pools {
		c.pools[k].Destroy()
	}
	slogger().Debug("querycache: cache closed")
	if flushErr != nil {
		return fmt.Errorf("querycache: teardown flush: %w", flushErr)
	}
	return nil
}
