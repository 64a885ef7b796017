// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/gogpu/querycache/driver"
)

// decodeStream splits a serialized batch into its header count and
// record words.
func decodeStream(t *testing.T, raw []byte) (uint32, []uint32) {
	t.Helper()
	if len(raw) < 4 || len(raw)%4 != 0 {
		t.Fatalf("stream length %d not word aligned", len(raw))
	}
	count := binary.LittleEndian.Uint32(raw)
	var words []uint32
	for off := 4; off < len(raw); off += 4 {
		words = append(words, binary.LittleEndian.Uint32(raw[off:]))
	}
	return count, words
}

func TestCommandBufferEncodesOps(t *testing.T) {
	set := &querySet{kind: driver.QueryKindOcclusion, first: 8, count: 4}
	var b CommandBuffer
	b.ResetQuerySet(set, 0, 4)
	b.BeginQuery(set, 1, true)
	b.EmitSamples(1<<32 | 5)
	b.EndQuery(set, 1)

	raw, err := b.serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	count, words := decodeStream(t, raw)
	if count != 4 {
		t.Fatalf("record count = %d, want 4", count)
	}
	want := []uint32{
		opReset, 8, 4, 0,
		opBegin, 9, 0, 0,
		opEmit, 5, 1, 0,
		opEnd, 9, 0, 0,
	}
	if len(words) != len(want) {
		t.Fatalf("got %d record words, want %d", len(words), len(want))
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = %d, want %d", i, words[i], want[i])
		}
	}
}

func TestCommandBufferReset(t *testing.T) {
	set := &querySet{first: 0, count: 1}
	var b CommandBuffer
	b.BeginQuery(set, 0, true)
	if b.opCount() != 1 {
		t.Fatalf("opCount = %d, want 1", b.opCount())
	}
	b.reset()
	if b.opCount() != 0 {
		t.Fatalf("opCount after reset = %d, want 0", b.opCount())
	}
	raw, err := b.serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if count, _ := decodeStream(t, raw); count != 0 {
		t.Fatalf("empty batch record count = %d, want 0", count)
	}
}

func TestSerializeRejectsOversizedBatch(t *testing.T) {
	set := &querySet{first: 0, count: 1}
	var b CommandBuffer
	for i := 0; i <= maxBatchOps; i++ {
		b.BeginQuery(set, 0, true)
	}
	if _, err := b.serialize(); err == nil {
		t.Fatal("expected error for oversized batch")
	}
}

func TestSlotMapsIntoArena(t *testing.T) {
	set := &querySet{first: 16, count: 4}
	if got := set.slot(3); got != 19 {
		t.Fatalf("slot(3) = %d, want 19", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range index")
		}
	}()
	set.slot(4)
}

func TestResetRangeChecked(t *testing.T) {
	set := &querySet{first: 0, count: 4}
	var b CommandBuffer
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range reset")
		}
	}()
	b.ResetQuerySet(set, 2, 3)
}

func TestForeignQuerySetPanics(t *testing.T) {
	var b CommandBuffer
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for foreign query set")
		}
	}()
	b.BeginQuery(foreignSet{}, 0, true)
}

type foreignSet struct{}

func (foreignSet) Kind() driver.QueryKind { return driver.QueryKindOcclusion }
func (foreignSet) Count() int             { return 1 }

func TestShaderSourceEmbedded(t *testing.T) {
	if !strings.Contains(queryShaderWGSL, "@compute") || !strings.Contains(queryShaderWGSL, "fn main") {
		t.Fatal("query shader missing compute entry point")
	}
}
