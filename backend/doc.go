// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend provides a pluggable device registry for the query
// cache.
//
// A backend packages one way of opening a driver.Device. Two ship with
// this module: "sim", a deterministic in-process simulator, and "wgpu",
// real GPU hardware through gogpu/wgpu.
//
// # Backend Registration
//
// Backends register via init() functions and are selected at runtime.
// Importing a backend package links it in:
//
//	import (
//		_ "github.com/gogpu/querycache/backend/sim"
//		_ "github.com/gogpu/querycache/backend/wgpu"
//	)
//
// # Backend Selection
//
// Use Default() for the best available device, or Open() to request a
// specific backend by name:
//
//	dev, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Destroy()
//
//	dev, err = backend.Open(backend.BackendSim)
//
// Default tries hardware first and falls back to the simulator, so a
// binary that imports both always gets a working device.
package backend
