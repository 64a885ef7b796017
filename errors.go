// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

import "errors"

// Package errors for the query cache.
var (
	// ErrNilDevice is returned when a cache is created without a device.
	ErrNilDevice = errors.New("querycache: nil device")

	// ErrNilScheduler is returned when a cache is created without a
	// scheduler.
	ErrNilScheduler = errors.New("querycache: nil scheduler")

	// ErrCacheClosed is returned for operations on a closed cache.
	ErrCacheClosed = errors.New("querycache: cache closed")

	// ErrCounterClosed is returned when an unresolved counter is queried
	// after its slot was released.
	ErrCounterClosed = errors.New("querycache: counter closed")

	// ErrReadback wraps readback failures that are not device losses.
	// The query failed; the device is still usable.
	ErrReadback = errors.New("querycache: query readback failed")

	// ErrNoGuestMemory is returned by BindQuery when the cache was
	// created without a GuestMemory.
	ErrNoGuestMemory = errors.New("querycache: no guest memory configured")
)
