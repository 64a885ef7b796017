// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package driver defines the device abstraction the query cache runs on.
//
// A Device owns hardware query sets and a timeline of submission ticks.
// Command recording is deferred: BeginQuery, EndQuery, ResetQuerySet and
// EmitSamples describe work appended to a CommandBuffer, and nothing
// executes until the buffer is submitted with a signal tick. Results are
// read back synchronously through QueryResult, which waits until the GPU
// has produced the value.
//
// Two implementations ship with the module: backend/sim, a pure-Go device
// used for tests and as a portable fallback, and backend/wgpu, which runs
// on the gogpu/wgpu HAL.
package driver
