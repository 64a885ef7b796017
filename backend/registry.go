// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/querycache/driver"
)

// Backend names accepted by Open.
const (
	// BackendSim is the in-process simulated device (always available).
	BackendSim = "sim"
	// BackendWGPU is the GPU device built on gogpu/wgpu.
	BackendWGPU = "wgpu"
)

// Factory opens a new device instance.
type Factory func() (driver.Device, error)

// ErrNoBackend is returned when no usable backend is registered.
var ErrNoBackend = errors.New("backend: no backend available")

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for backend selection (first to open wins).
	// Real hardware beats the simulator when both are linked in.
	priority = []string{BackendWGPU, BackendSim}
)

// Register registers a device factory under the given name. This is
// typically called from init() functions in backend packages. Registering
// an existing name replaces the factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry. Useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// IsRegistered reports whether a backend with the given name exists.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens a device from the named backend.
func Open(name string) (driver.Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q not registered", ErrNoBackend, name)
	}
	return factory()
}

// Default opens a device from the best available backend: each registered
// backend is tried in priority order and the first that opens wins.
// Backends that fail to open (no GPU, missing libraries) are skipped.
func Default() (driver.Device, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var firstErr error
	for _, name := range priority {
		factory, ok := factories[name]
		if !ok {
			continue
		}
		dev, err := factory()
		if err == nil {
			return dev, nil
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("backend %s: %w", name, err)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNoBackend
}
