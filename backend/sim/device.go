// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/querycache/backend"
	"github.com/gogpu/querycache/driver"
)

func init() {
	backend.Register(backend.BackendSim, func() (driver.Device, error) {
		return New(), nil
	})
}

// querySet is one simulated hardware query set.
type querySet struct {
	id        int
	kind      driver.QueryKind
	values    []uint64
	active    []bool
	endTick   []uint64
	destroyed bool
}

func (s *querySet) Kind() driver.QueryKind { return s.kind }
func (s *querySet) Count() int             { return len(s.values) }

// Device is a deterministic in-process driver.Device. Commands execute
// when their batch is submitted; sample counts accumulate per slot while
// a query is active.
//
// Completion normally tracks submission, so readbacks return as soon as
// the slot's value exists. HoldCompletion decouples the two: the fake GPU
// keeps executing but stops signaling ticks, which makes waits and
// readbacks block the way they do behind a busy hardware queue.
type Device struct {
	mu        sync.Mutex
	cond      *sync.Cond
	sets      []*querySet
	completed uint64
	highest   uint64
	held      bool
	injected  bool
	destroyed bool

	lossReports int
	executed    []string
	violations  []string
}

// New creates a simulated device.
func New() *Device {
	d := &Device{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *Device) CreateQuerySet(kind driver.QueryKind, count int) (driver.QuerySet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, driver.ErrDeviceDestroyed
	}
	s := &querySet{
		id:      len(d.sets),
		kind:    kind,
		values:  make([]uint64, count),
		active:  make([]bool, count),
		endTick: make([]uint64, count),
	}
	d.sets = append(d.sets, s)
	return s, nil
}

func (d *Device) DestroyQuerySet(set driver.QuerySet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set.(*querySet).destroyed = true
}

func (d *Device) NewCommandBuffer() (driver.CommandBuffer, error) {
	return &CommandBuffer{}, nil
}

// Submit executes the batch and signals signalTick, unless completion is
// held, in which case the tick is signaled by ReleaseCompletion.
func (d *Device) Submit(cb driver.CommandBuffer, signalTick uint64) error {
	b := cb.(*CommandBuffer)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return driver.ErrDeviceDestroyed
	}
	if d.injected {
		return driver.ErrDeviceLost
	}
	for _, o := range b.ops {
		d.execute(o, signalTick)
		d.executed = append(d.executed, o.String())
	}
	b.ops = nil
	d.highest = signalTick
	if !d.held {
		d.completed = signalTick
		d.cond.Broadcast()
	}
	return nil
}

func (d *Device) execute(o op, tick uint64) {
	if o.set != nil && o.set.destroyed {
		d.violations = append(d.violations, "executed on destroyed set: "+o.String())
		return
	}
	switch o.code {
	case opReset:
		for i := o.index; i < o.index+o.count; i++ {
			o.set.values[i] = 0
			o.set.active[i] = false
			o.set.endTick[i] = 0
		}
	case opBegin:
		o.set.active[o.index] = true
	case opEnd:
		o.set.active[o.index] = false
		o.set.endTick[o.index] = tick
	case opEmit:
		for _, s := range d.sets {
			if s.destroyed {
				continue
			}
			for i, active := range s.active {
				if active {
					s.values[i] += o.samples
				}
			}
		}
	}
}

// WaitTick blocks until the device signals tick or the timeout expires.
func (d *Device) WaitTick(tick uint64, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, d.cond.Broadcast)
	defer timer.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	for d.completed < tick {
		if d.destroyed {
			return false, driver.ErrDeviceDestroyed
		}
		if d.injected {
			return false, driver.ErrDeviceLost
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		d.cond.Wait()
	}
	return true, nil
}

func (d *Device) CompletedTick() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

// QueryResult blocks until the slot's end has been executed and its tick
// signaled, then returns the accumulated value.
func (d *Device) QueryResult(set driver.QuerySet, index int) (uint64, error) {
	s := set.(*querySet)
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		if d.injected {
			return 0, driver.ErrDeviceLost
		}
		if d.destroyed {
			return 0, driver.ErrDeviceDestroyed
		}
		if s.destroyed {
			v := fmt.Sprintf("readback on destroyed set %d", s.id)
			d.violations = append(d.violations, v)
			return 0, fmt.Errorf("sim: %s", v)
		}
		if s.endTick[index] != 0 && d.completed >= s.endTick[index] {
			return s.values[index], nil
		}
		d.cond.Wait()
	}
}

func (d *Device) ReportLoss() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lossReports++
}

func (d *Device) Lost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lossReports > 0
}

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	d.cond.Broadcast()
}

// HoldCompletion freezes the device timeline: submitted batches execute
// but their ticks are not signaled, so waiters block.
func (d *Device) HoldCompletion() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.held = true
}

// ReleaseCompletion signals everything submitted while held.
func (d *Device) ReleaseCompletion() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.held = false
	d.completed = d.highest
	d.cond.Broadcast()
}

// InjectLoss makes the device behave as lost: submits and readbacks fail
// with driver.ErrDeviceLost, and blocked waiters wake with it.
func (d *Device) InjectLoss() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injected = true
	d.cond.Broadcast()
}

// LossReports returns how many times ReportLoss has been called.
func (d *Device) LossReports() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lossReports
}

// Ops returns the executed commands in order, rendered as strings.
func (d *Device) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.executed...)
}

// Violations returns commands or readbacks that touched a destroyed set.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}
