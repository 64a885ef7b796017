// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"fmt"

	"github.com/gogpu/querycache/driver"
)

type opCode uint8

const (
	opReset opCode = iota
	opBegin
	opEnd
	opEmit
)

// op is one recorded command. set is nil for opEmit, which targets every
// active slot on the device.
type op struct {
	code    opCode
	set     *querySet
	index   int
	count   int
	samples uint64
}

func (o op) String() string {
	switch o.code {
	case opReset:
		return fmt.Sprintf("set%d reset %d+%d", o.set.id, o.index, o.count)
	case opBegin:
		return fmt.Sprintf("set%d begin %d", o.set.id, o.index)
	case opEnd:
		return fmt.Sprintf("set%d end %d", o.set.id, o.index)
	case opEmit:
		return fmt.Sprintf("emit %d", o.samples)
	default:
		return "unknown"
	}
}

// CommandBuffer records ops for one batch. Recording is free of device
// state; everything happens at Submit.
type CommandBuffer struct {
	ops []op
}

func ownSet(set driver.QuerySet) *querySet {
	s, ok := set.(*querySet)
	if !ok {
		panic("sim: query set from another backend")
	}
	return s
}

func (b *CommandBuffer) ResetQuerySet(set driver.QuerySet, first, count int) {
	b.ops = append(b.ops, op{code: opReset, set: ownSet(set), index: first, count: count})
}

func (b *CommandBuffer) BeginQuery(set driver.QuerySet, index int, precise bool) {
	b.ops = append(b.ops, op{code: opBegin, set: ownSet(set), index: index})
}

func (b *CommandBuffer) EndQuery(set driver.QuerySet, index int) {
	b.ops = append(b.ops, op{code: opEnd, set: ownSet(set), index: index})
}

func (b *CommandBuffer) EmitSamples(count uint64) {
	b.ops = append(b.ops, op{code: opEmit, samples: count})
}
