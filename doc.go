// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package querycache manages the lifecycle of GPU occlusion queries for
// hardware-accelerated rendering backends.
//
// # Overview
//
// GPUs execute asynchronously and in batches, while host software expects
// to read an occlusion counter as if it were a synchronous register. This
// package bridges the two: it maintains growable pools of hardware query
// slots that are reused only after the GPU has finished with them, gives
// each logical query a record/finish/read lifecycle, and transparently
// flushes and stalls on the scheduler when a result is demanded before the
// GPU has caught up.
//
// # Quick Start
//
//	dev, _ := sim.New()
//	sched := scheduler.New(dev)
//	cache, _ := querycache.New(querycache.Config{Device: dev, Scheduler: sched})
//	defer cache.Close()
//
//	stream := cache.Stream(querycache.KindOcclusion)
//	stream.Update(true) // begin counting
//	sched.Record(func(cb driver.CommandBuffer) { cb.EmitSamples(128) })
//	stream.Update(false) // stop counting
//
//	value, _ := stream.Last().Query() // flushes and blocks as needed
//
// # Architecture
//
// The package is organized into:
//   - Public API: Cache, SlotPool, HostCounter, CounterStream, Handle
//   - driver/: the device abstraction queries run against
//   - scheduler/: deferred command batching and the submission tick timeline
//   - backend/sim, backend/wgpu: pure-Go and gogpu/wgpu devices
//
// Slot reuse is tick-gated: a slot handed out under tick T is not granted
// again until the device reports T complete, so in-flight GPU work never
// races a recycled slot.
//
// # Concurrency
//
// Command recording assumes a single submitting goroutine, matching how
// rendering backends drive their scheduler. Cache bookkeeping is mutex
// guarded so allocation and release stay consistent if helper goroutines
// release counters, but HostCounter.BlockingQuery must never be called
// while holding locks the submission path needs.
package querycache

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
