// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

import "sort"

// GuestMemory receives query results written back by FlushRegion. addr is
// the address the query was bound to. Implementations that store into raw
// byte ranges write the value as a little-endian 64-bit word.
type GuestMemory interface {
	WriteUint64(addr uint64, value uint64)
}

// boundQuery is one guest address waiting for a counter result. Once
// resolved the value sticks, so repeated flushes rewrite it without
// touching the device.
type boundQuery struct {
	kind     Kind
	counter  *HostCounter
	value    uint64
	resolved bool
}

// captureCounter snapshots the accumulation point of a stream: an enabled
// stream is rotated (current counter ended, a fresh one opened on the
// chain) so the returned counter covers everything up to this call. A
// stream that never counted returns nil.
func (c *Cache) captureCounter(kind Kind) (*HostCounter, error) {
	s := c.streams[kind]
	if s.Enabled() {
		s.Disable()
		if err := s.Enable(); err != nil {
			return nil, err
		}
	}
	return s.Last(), nil
}

// BindQuery captures the accumulated count of kind at this point and binds
// it to the guest address addr. Nothing blocks here; the readback happens
// when FlushRegion covers addr. Rebinding an address supersedes the
// previous binding, whose result is never written.
//
// Requires a GuestMemory in the cache Config.
func (c *Cache) BindQuery(addr uint64, kind Kind) error {
	if !kind.Valid() {
		panic("querycache: invalid counter kind")
	}
	if c.mem == nil {
		return ErrNoGuestMemory
	}
	ctr, err := c.captureCounter(kind)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	q := &boundQuery{kind: kind, counter: ctr}
	if ctr == nil {
		q.resolved = true
	}
	c.queries[addr] = q
	return nil
}

// Query captures the accumulated count of kind at this point, resolves it
// immediately, and returns it. May flush and block like BlockingQuery.
// With a GuestMemory configured the resolved value is also bound at addr,
// so a later FlushRegion writes it without blocking again.
func (c *Cache) Query(addr uint64, kind Kind) (uint64, error) {
	if !kind.Valid() {
		panic("querycache: invalid counter kind")
	}
	ctr, err := c.captureCounter(kind)
	if err != nil {
		return 0, err
	}
	var v uint64
	if ctr != nil {
		v, err = ctr.Query()
		if err != nil {
			return 0, err
		}
	}
	if c.mem != nil {
		c.mu.Lock()
		if !c.closed {
			c.queries[addr] = &boundQuery{kind: kind, counter: ctr, value: v, resolved: true}
		}
		c.mu.Unlock()
	}
	return v, nil
}

// FlushRegion resolves every binding in [addr, addr+size) and writes the
// results to guest memory in ascending address order. Unresolved bindings
// block like BlockingQuery; the first readback error aborts the walk,
// leaving later bindings pending. No-op without a GuestMemory.
func (c *Cache) FlushRegion(addr, size uint64) error {
	if c.mem == nil {
		return nil
	}
	type entry struct {
		addr uint64
		q    *boundQuery
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCacheClosed
	}
	var pending []entry
	for a, q := range c.queries {
		if a >= addr && a < addr+size {
			pending = append(pending, entry{a, q})
		}
	}
	c.mu.Unlock()
	sort.Slice(pending, func(i, j int) bool { return pending[i].addr < pending[j].addr })

	for _, e := range pending {
		if !e.q.resolved {
			v, err := e.q.counter.Query()
			if err != nil {
				return err
			}
			e.q.value = v
			e.q.resolved = true
		}
		c.mem.WriteUint64(e.addr, e.q.value)
	}
	return nil
}

// InvalidateRegion drops every binding in [addr, addr+size). Dropped
// bindings are never resolved or written; the guest has overwritten that
// memory.
func (c *Cache) InvalidateRegion(addr, size uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for a := range c.queries {
		if a >= addr && a < addr+size {
			delete(c.queries, a)
		}
	}
}
