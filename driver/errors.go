// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import "errors"

var (
	// ErrDeviceLost indicates the GPU device became unusable. Operations
	// against a lost device fail without retry.
	ErrDeviceLost = errors.New("driver: GPU device lost")

	// ErrDeviceDestroyed indicates an operation on a destroyed device.
	ErrDeviceDestroyed = errors.New("driver: device destroyed")
)
