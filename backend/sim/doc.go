// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package sim provides a simulated query device for tests, CI, and
// machines without a GPU.
//
// The simulator implements driver.Device entirely in memory and executes
// batches at Submit. It plays the role a software rasterizer plays for a
// rendering stack: always available, deterministic, and debuggable. On
// top of the driver contract it offers test controls that real hardware
// cannot: HoldCompletion stalls the timeline to reproduce a busy GPU,
// InjectLoss reproduces device loss, and Ops exposes the executed command
// stream.
//
// Importing the package registers the device under the name "sim":
//
//	import _ "github.com/gogpu/querycache/backend/sim"
package sim
