// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu backs the query cache with a real GPU through the wgpu
// HAL.
//
// Query slots have no native query-pool object here. The device keeps a
// fixed arena of storage buffers instead: one 64-bit counter and one
// accumulation flag per slot. Command buffers record query ops as a
// compact u32 stream, and Submit runs a single-invocation compute
// shader that interprets the stream in order against the arena. Each
// batch ends by copying the counter arena to a mappable staging buffer,
// so readback is a fence wait plus an 8-byte buffer read.
//
// # Device sharing
//
// New opens a standalone device on the first usable adapter. When the
// application already renders through gogpu, NewFromProvider attaches
// to the renderer's device via gpucontext.DeviceProvider instead, and
// device teardown stays with the owner.
//
// Importing the package registers the device under the name "wgpu":
//
//	import _ "github.com/gogpu/querycache/backend/wgpu"
package wgpu
