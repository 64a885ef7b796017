// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package respool implements tick-gated reuse of GPU-resident resources.
package respool

// TickSource reports submission progress of the device timeline. The pool
// reuses a slot only once the GPU has completed the tick the slot was last
// handed out under.
type TickSource interface {
	// CurrentTick returns the tick of the batch currently being built.
	CurrentTick() uint64

	// CompletedTick returns the highest tick the GPU has finished.
	CompletedTick() uint64
}

// GrowFunc allocates backing storage for slots [begin, end). It is called
// with end-begin equal to the pool's grow step. An error aborts the growth
// with no change to the pool.
type GrowFunc func(begin, end int) error

// Pool hands out slot indices whose previous GPU use has completed, growing
// by a fixed step when no such slot exists. Growth always precedes the
// owner's own free-slot bookkeeping: a caller may be handed a slot it still
// considers occupied and must simply ask again.
//
// Pool is not safe for concurrent use; the owner serializes access.
type Pool struct {
	src   TickSource
	grow  GrowFunc
	step  int
	ticks []uint64
}

// New creates an empty pool. step is the number of slots added per growth;
// grow allocates the owner's backing storage for each new range.
func New(src TickSource, step int, grow GrowFunc) *Pool {
	return &Pool{src: src, grow: grow, step: step}
}

// Commit returns the lowest slot index whose last use has completed on the
// GPU, stamping it with the current tick so it is not handed out again
// before that tick completes. If every slot is still pending, the pool grows
// by one step and the first new slot is returned.
//
// A growth failure is returned unchanged and leaves the pool unmodified.
func (p *Pool) Commit() (int, error) {
	completed := p.src.CompletedTick()
	for i, tick := range p.ticks {
		if tick <= completed {
			p.ticks[i] = p.src.CurrentTick()
			return i, nil
		}
	}

	begin := len(p.ticks)
	end := begin + p.step
	if err := p.grow(begin, end); err != nil {
		return 0, err
	}
	p.ticks = append(p.ticks, make([]uint64, p.step)...)
	p.ticks[begin] = p.src.CurrentTick()
	return begin, nil
}

// Len returns the current slot capacity.
func (p *Pool) Len() int {
	return len(p.ticks)
}
