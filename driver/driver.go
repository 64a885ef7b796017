// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import "time"

// QueryKind identifies the category of measurement a query slot takes.
//
// The set of kinds is closed and small; kind values index fixed-size tables
// throughout the module, so new kinds extend this enumeration rather than a
// runtime registry.
type QueryKind uint8

const (
	// QueryKindOcclusion counts samples that pass the depth and stencil
	// tests while the query is active.
	QueryKindOcclusion QueryKind = iota
)

// NumQueryKinds is the number of defined query kinds.
const NumQueryKinds = 1

// String returns the kind name.
func (k QueryKind) String() string {
	switch k {
	case QueryKindOcclusion:
		return "occlusion"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a defined query kind.
func (k QueryKind) Valid() bool {
	return int(k) < NumQueryKinds
}

// QuerySet is one hardware query-pool object holding a fixed number of
// query slots. Sets are comparable by identity: the same QuerySet value is
// returned for the lifetime of the underlying hardware object.
type QuerySet interface {
	// Kind returns the counter kind the set was created for.
	Kind() QueryKind

	// Count returns the number of slots in the set.
	Count() int
}

// CommandBuffer records deferred GPU work. Commands are appended in order
// and execute only when the buffer is submitted via Device.Submit.
//
// A CommandBuffer is not safe for concurrent recording; the scheduler owns
// the only buffer being built at any time.
type CommandBuffer interface {
	// ResetQuerySet restores count slots starting at first to the
	// unwritten state, clearing any previously accumulated value.
	ResetQuerySet(set QuerySet, first, count int)

	// BeginQuery starts counting on one slot. With precise set the device
	// must report exact sample counts rather than a boolean approximation.
	BeginQuery(set QuerySet, index int, precise bool)

	// EndQuery stops counting on one slot and marks its value available
	// once the batch executes.
	EndQuery(set QuerySet, index int)

	// EmitSamples feeds count samples to every query slot that is active
	// at this point in the command stream. It stands in for the draw work
	// a rasterizer would record between BeginQuery and EndQuery.
	EmitSamples(count uint64)
}

// Device abstracts the GPU for the query cache.
//
// Submission follows a timeline model: each Submit signals a tick, ticks are
// strictly increasing, and CompletedTick reports the highest tick the GPU is
// known to have finished. A slot committed at tick T may be reused only once
// CompletedTick() >= T.
//
// Implementations must be safe for concurrent use; QueryResult in particular
// is called while other goroutines observe the timeline.
type Device interface {
	// CreateQuerySet allocates one hardware query-pool object with count
	// slots of the given kind.
	CreateQuerySet(kind QueryKind, count int) (QuerySet, error)

	// DestroyQuerySet releases a query set. Destroying a set with pending
	// readbacks is undefined behavior; the cache layer orders teardown so
	// this cannot happen.
	DestroyQuerySet(set QuerySet)

	// NewCommandBuffer starts recording a new batch.
	NewCommandBuffer() (CommandBuffer, error)

	// Submit executes a recorded batch and signals the device timeline
	// with signalTick once the batch completes on the GPU. Tick values
	// must be strictly increasing across calls.
	Submit(cb CommandBuffer, signalTick uint64) error

	// WaitTick blocks until the GPU reaches tick or the timeout expires.
	// Returns true if the tick was reached.
	WaitTick(tick uint64, timeout time.Duration) (bool, error)

	// CompletedTick returns the highest tick the GPU is known to have
	// completed. It polls without blocking.
	CompletedTick() uint64

	// QueryResult fetches the 64-bit value of one slot, waiting until the
	// result is available. The wait is unbounded: availability requires
	// that the batch containing the slot's EndQuery has been submitted,
	// which is the caller's responsibility (the host counter flushes the
	// scheduler before calling this).
	//
	// Returns ErrDeviceLost if the device became unusable, or another
	// error for any other failed readback. Neither is retried here.
	QueryResult(set QuerySet, index int) (uint64, error)

	// ReportLoss notifies the device that a loss was observed so other
	// components sharing it can react. It does not itself fail anything.
	ReportLoss()

	// Lost reports whether a device loss has been recorded.
	Lost() bool

	// Destroy releases the device and all remaining resources.
	Destroy()
}
