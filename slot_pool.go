// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

import (
	"fmt"

	"github.com/gogpu/querycache/driver"
	"github.com/gogpu/querycache/internal/metrics"
	"github.com/gogpu/querycache/internal/respool"
)

// DefaultGrowStep is the number of query slots added per pool growth, and
// the size of each hardware query set backing a chunk.
const DefaultGrowStep = 64

// TickSource reports submission progress of the device timeline. The
// scheduler implements it; tests substitute fakes.
type TickSource interface {
	// CurrentTick returns the tick of the batch currently being built.
	CurrentTick() uint64

	// CompletedTick returns the highest tick the GPU has finished.
	CompletedTick() uint64
}

// Handle identifies one leased hardware query slot: the query set backing
// its chunk and the index within that set. The zero Handle is invalid.
type Handle struct {
	set   driver.QuerySet
	index int
}

// Set returns the hardware query set the slot lives in.
func (h Handle) Set() driver.QuerySet { return h.set }

// Index returns the slot index within the set.
func (h Handle) Index() int { return h.index }

// Valid reports whether the handle refers to a slot.
func (h Handle) Valid() bool { return h.set != nil }

// SlotPool owns the hardware query slots for one counter kind. Slots are
// grouped in chunks of GrowStep, each chunk backed by one driver.QuerySet,
// with a flat usage bitmap across all chunks. The pool only ever grows;
// chunks are destroyed together when the owning cache shuts down.
//
// SlotPool methods are not synchronized; the Cache serializes access.
type SlotPool struct {
	dev   driver.Device
	kind  Kind
	step  int
	res   *respool.Pool
	sets  []driver.QuerySet
	usage []bool
}

// NewSlotPool creates an empty pool for one counter kind. growStep of 0
// selects DefaultGrowStep. No hardware is allocated until the first Commit.
func NewSlotPool(dev driver.Device, ticks TickSource, kind Kind, growStep int) *SlotPool {
	if growStep <= 0 {
		growStep = DefaultGrowStep
	}
	p := &SlotPool{dev: dev, kind: kind, step: growStep}
	p.res = respool.New(ticks, growStep, p.allocate)
	return p
}

// Commit leases a free slot, growing the pool by one chunk if the reuse
// mechanism finds no completed slot. The mechanism may hand back indices
// that are still leased; those are skipped and the ask repeated, so Commit
// never aliases a live handle. Commit never blocks on the GPU.
//
// The only error is a failed chunk allocation, which leaves the pool
// unchanged and is fatal for the lease attempt.
func (p *SlotPool) Commit() (Handle, error) {
	for {
		idx, err := p.res.Commit()
		if err != nil {
			return Handle{}, err
		}
		if p.usage[idx] {
			continue
		}
		p.usage[idx] = true
		metrics.SlotCommits.Inc()
		return Handle{set: p.sets[idx/p.step], index: idx % p.step}, nil
	}
}

// allocate is the growth callback: it appends one chunk covering slots
// [begin, end). The usage bitmap is resized only after the hardware set is
// created, so a failed allocation leaves no partial growth behind.
func (p *SlotPool) allocate(begin, end int) error {
	set, err := p.dev.CreateQuerySet(p.kind, end-begin)
	if err != nil {
		return fmt.Errorf("querycache: grow %v pool to %d slots: %w", p.kind, end, err)
	}
	p.sets = append(p.sets, set)
	p.usage = append(p.usage, make([]bool, end-begin)...)
	metrics.PoolGrowths.Inc()
	slogger().Debug("querycache: slot pool grew", "kind", p.kind, "slots", end, "chunks", len(p.sets))
	return nil
}

// Reserve releases a previously committed slot. The chunk is located by
// query-set identity; a handle that matches no chunk means Commit/Reserve
// pairing went wrong somewhere, which is unrecoverable, so Reserve panics
// rather than corrupt the bitmap.
func (p *SlotPool) Reserve(h Handle) {
	for i, set := range p.sets {
		if set == h.set {
			p.usage[i*p.step+h.index] = false
			metrics.SlotReserves.Inc()
			return
		}
	}
	panic("querycache: reserve of a slot not owned by this pool")
}

// Len returns the total slot capacity across all chunks.
func (p *SlotPool) Len() int { return len(p.usage) }

// Chunks returns the number of chunks allocated so far.
func (p *SlotPool) Chunks() int { return len(p.sets) }

// Destroy releases every hardware query set. The pool must not be used
// afterwards; only the owning cache calls this, after all counters have
// been finalized.
func (p *SlotPool) Destroy() {
	for _, set := range p.sets {
		p.dev.DestroyQuerySet(set)
	}
	p.sets = nil
}
