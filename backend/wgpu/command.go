// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/querycache/driver"
)

// Op codes understood by the interpreter shader. Must match
// shaders/query.wgsl.
const (
	opReset uint32 = 1
	opBegin uint32 = 2
	opEnd   uint32 = 3
	opEmit  uint32 = 4
)

// opWords is the number of u32 words per encoded record.
const opWords = 4

// CommandBuffer batches query ops as the u32 record stream consumed by
// the interpreter shader. The zero value is empty and ready for use.
type CommandBuffer struct {
	records []uint32
}

func (b *CommandBuffer) push(code, argA, argB uint32) {
	b.records = append(b.records, code, argA, argB, 0)
}

// ResetQuerySet zeroes the counters and accumulation flags of a slot
// range within set.
func (b *CommandBuffer) ResetQuerySet(set driver.QuerySet, first, count int) {
	s := ownSet(set)
	if first < 0 || count < 0 || first+count > s.count {
		panic("wgpu: query range out of bounds")
	}
	b.push(opReset, uint32(s.first+first), uint32(count))
}

// BeginQuery starts accumulation on one slot. Counts on this backend
// are always exact sample counts, so the precise flag carries no
// information.
func (b *CommandBuffer) BeginQuery(set driver.QuerySet, index int, precise bool) {
	b.push(opBegin, ownSet(set).slot(index), 0)
}

// EndQuery stops accumulation on one slot.
func (b *CommandBuffer) EndQuery(set driver.QuerySet, index int) {
	b.push(opEnd, ownSet(set).slot(index), 0)
}

// EmitSamples adds count samples to every slot currently accumulating.
func (b *CommandBuffer) EmitSamples(count uint64) {
	b.push(opEmit, uint32(count), uint32(count>>32))
}

// opCount returns the number of encoded records.
func (b *CommandBuffer) opCount() int { return len(b.records) / opWords }

// serialize renders the batch as the byte stream the shader consumes: a
// record count word followed by the records.
func (b *CommandBuffer) serialize() ([]byte, error) {
	n := b.opCount()
	if n > maxBatchOps {
		return nil, fmt.Errorf("wgpu: batch of %d ops exceeds capacity %d", n, maxBatchOps)
	}
	out := make([]byte, 4+len(b.records)*4)
	binary.LittleEndian.PutUint32(out, uint32(n))
	for i, w := range b.records {
		binary.LittleEndian.PutUint32(out[4+i*4:], w)
	}
	return out, nil
}

// reset empties the buffer for reuse after submission.
func (b *CommandBuffer) reset() {
	b.records = b.records[:0]
}

// ownSet asserts that set was created by this backend.
func ownSet(set driver.QuerySet) *querySet {
	s, ok := set.(*querySet)
	if !ok {
		panic("wgpu: query set from another backend")
	}
	return s
}
