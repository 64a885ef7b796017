// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/querycache/backend"
	"github.com/gogpu/querycache/driver"
)

func init() {
	backend.Register(backend.BackendWGPU, func() (driver.Device, error) {
		return New()
	})
}

const (
	// maxArenaSlots bounds the device-wide slot arena shared by every
	// query set.
	maxArenaSlots = 4096

	// maxBatchOps bounds the records in one submitted batch.
	maxBatchOps = 4096

	// fenceSlice is the wait granularity for unbounded readback waits.
	// Each expired slice logs progress and waits again.
	fenceSlice = 5 * time.Second
)

// querySet is a contiguous slot range carved from the arena.
type querySet struct {
	kind      driver.QueryKind
	first     int
	count     int
	destroyed bool
}

func (s *querySet) Kind() driver.QueryKind { return s.kind }
func (s *querySet) Count() int             { return s.count }

// slot maps an in-set index to its arena slot, checking bounds.
func (s *querySet) slot(index int) uint32 {
	if index < 0 || index >= s.count {
		panic("wgpu: query index out of range")
	}
	return uint32(s.first + index)
}

// pendingBatch is a submitted command buffer awaiting completion.
type pendingBatch struct {
	tick   uint64
	cmdBuf hal.CommandBuffer
}

// halProvider is the subset of context device providers that expose raw
// HAL handles.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Device implements driver.Device on a wgpu HAL device. Query slots
// live in a device-wide arena of storage buffers; a batch executes as
// one compute dispatch interpreting the recorded op stream, then copies
// the counter arena to a mappable staging buffer for readback.
//
// One HAL fence serves as the submission timeline: Submit signals it
// with the batch tick and waits target specific tick values.
type Device struct {
	mu       sync.Mutex
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owns     bool

	pipe    *queryPipeline
	fence   hal.Fence
	pending []pendingBatch

	used      int
	highest   uint64
	completed uint64

	broken      bool
	lossReports int
	destroyed   bool
}

// New opens a standalone device on the first usable GPU adapter.
func New() (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errors.New("wgpu: vulkan backend not available")
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("wgpu: no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		t := adapters[i].Info.DeviceType
		if t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open adapter %q: %w", selected.Info.Name, err)
	}
	d, err := newDevice(openDev.Device, openDev.Queue, instance, true)
	if err != nil {
		return nil, err
	}
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// NewFromProvider wraps a device shared through a gpucontext provider,
// as when the query cache rides on a renderer's device. The provider
// must expose raw HAL handles; the returned Device does not own them
// and leaves them alive on Destroy.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider %T does not expose HAL handles", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider device is %T, not hal.Device", hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider queue is %T, not hal.Queue", hp.HalQueue())
	}
	return newDevice(device, queue, nil, false)
}

func newDevice(device hal.Device, queue hal.Queue, instance hal.Instance, owns bool) (*Device, error) {
	release := func() {
		if owns {
			device.Destroy()
			if instance != nil {
				instance.Destroy()
			}
		}
	}
	pipe, err := newQueryPipeline(device, queue)
	if err != nil {
		release()
		return nil, err
	}
	fence, err := device.CreateFence()
	if err != nil {
		pipe.destroy(device)
		release()
		return nil, fmt.Errorf("wgpu: create fence: %w", err)
	}
	return &Device{
		instance: instance,
		device:   device,
		queue:    queue,
		owns:     owns,
		pipe:     pipe,
		fence:    fence,
	}, nil
}

func (d *Device) CreateQuerySet(kind driver.QueryKind, count int) (driver.QuerySet, error) {
	if count <= 0 {
		return nil, fmt.Errorf("wgpu: query set size %d must be positive", count)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, driver.ErrDeviceDestroyed
	}
	if d.used+count > maxArenaSlots {
		return nil, fmt.Errorf("wgpu: query arena exhausted (%d of %d slots in use)", d.used, maxArenaSlots)
	}
	s := &querySet{kind: kind, first: d.used, count: count}
	d.used += count
	slogger().Debug("wgpu: query set created", "kind", kind, "first", s.first, "count", count)
	return s, nil
}

// DestroyQuerySet retires a slot range. Ranges are not recycled; the
// arena is reclaimed wholesale when the device is destroyed.
func (d *Device) DestroyQuerySet(set driver.QuerySet) {
	s := ownSet(set)
	d.mu.Lock()
	defer d.mu.Unlock()
	s.destroyed = true
}

func (d *Device) NewCommandBuffer() (driver.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, driver.ErrDeviceDestroyed
	}
	return &CommandBuffer{}, nil
}

func (d *Device) Submit(cb driver.CommandBuffer, signalTick uint64) error {
	b, ok := cb.(*CommandBuffer)
	if !ok {
		panic("wgpu: command buffer from another backend")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return driver.ErrDeviceDestroyed
	}
	if d.broken {
		return driver.ErrDeviceLost
	}

	stream, err := b.serialize()
	if err != nil {
		return err
	}
	d.queue.WriteBuffer(d.pipe.ops, 0, stream)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "querycache_batch"})
	if err != nil {
		return d.fail("create encoder", err)
	}
	if err := encoder.BeginEncoding("querycache_batch"); err != nil {
		return d.fail("begin encoding", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "querycache_ops"})
	pass.SetPipeline(d.pipe.pipeline)
	pass.SetBindGroup(0, d.pipe.bindGroup, nil)
	pass.Dispatch(1, 1, 1)
	pass.End()
	encoder.CopyBufferToBuffer(d.pipe.counters, d.pipe.staging, []hal.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      countersBytes,
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return d.fail("end encoding", err)
	}
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, d.fence, signalTick); err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return d.fail("submit", err)
	}

	ops := b.opCount()
	b.reset()
	d.pending = append(d.pending, pendingBatch{tick: signalTick, cmdBuf: cmdBuf})
	d.highest = signalTick
	slogger().Debug("wgpu: batch submitted", "tick", signalTick, "ops", ops)
	return nil
}

func (d *Device) WaitTick(tick uint64, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return false, driver.ErrDeviceDestroyed
	}
	if d.broken {
		d.mu.Unlock()
		return false, driver.ErrDeviceLost
	}
	if tick > d.highest {
		d.mu.Unlock()
		return false, fmt.Errorf("wgpu: wait for unsubmitted tick %d (highest %d)", tick, d.highest)
	}
	d.mu.Unlock()

	ok, err := d.device.Wait(d.fence, tick, timeout)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		return false, d.fail("fence wait", err)
	}
	if ok {
		d.advance(tick)
	}
	return ok, nil
}

func (d *Device) CompletedTick() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed || d.broken {
		return d.completed
	}
	for d.completed < d.highest {
		// Zero timeout polls the fence without blocking.
		ok, err := d.device.Wait(d.fence, d.completed+1, 0)
		if err != nil || !ok {
			break
		}
		d.advance(d.completed + 1)
	}
	return d.completed
}

func (d *Device) QueryResult(set driver.QuerySet, index int) (uint64, error) {
	s := ownSet(set)
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return 0, driver.ErrDeviceDestroyed
	}
	if d.broken {
		d.mu.Unlock()
		return 0, driver.ErrDeviceLost
	}
	if s.destroyed {
		d.mu.Unlock()
		return 0, errors.New("wgpu: readback on destroyed query set")
	}
	slot := s.slot(index)
	target := d.highest
	d.mu.Unlock()

	// The staging copy in the latest submitted batch holds every slot
	// value up to that batch, so waiting for the newest tick makes the
	// slot's most recent EndQuery visible.
	if target > 0 {
		for {
			ok, err := d.device.Wait(d.fence, target, fenceSlice)
			if err != nil {
				d.mu.Lock()
				defer d.mu.Unlock()
				return 0, d.fail("fence wait", err)
			}
			if ok {
				break
			}
			slogger().Debug("wgpu: readback waiting on GPU", "tick", target, "slot", slot)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return 0, driver.ErrDeviceDestroyed
	}
	d.advance(target)
	var raw [8]byte
	if err := d.queue.ReadBuffer(d.pipe.staging, uint64(slot)*8, raw[:]); err != nil {
		return 0, fmt.Errorf("wgpu: read query slot %d: %w", slot, err)
	}
	return binary.LittleEndian.Uint64(raw[:]), nil
}

func (d *Device) ReportLoss() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lossReports++
	slogger().Warn("wgpu: device loss reported", "reports", d.lossReports)
}

func (d *Device) Lost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.broken || d.lossReports > 0
}

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	for _, p := range d.pending {
		d.device.FreeCommandBuffer(p.cmdBuf)
	}
	d.pending = nil
	if d.fence != nil {
		d.device.DestroyFence(d.fence)
		d.fence = nil
	}
	if d.pipe != nil {
		d.pipe.destroy(d.device)
		d.pipe = nil
	}
	if d.owns {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	slogger().Info("wgpu: device destroyed")
}

// fail marks the device broken and returns the loss sentinel wrapped
// with the failing op. Callers hold d.mu.
func (d *Device) fail(op string, err error) error {
	d.broken = true
	slogger().Warn("wgpu: device failure", "op", op, "error", err)
	return fmt.Errorf("wgpu: %s: %w (%v)", op, driver.ErrDeviceLost, err)
}

// advance marks tick complete and frees command buffers the GPU has
// finished with. Callers hold d.mu.
func (d *Device) advance(tick uint64) {
	if tick > d.completed {
		d.completed = tick
	}
	kept := d.pending[:0]
	for _, p := range d.pending {
		if p.tick > d.completed {
			kept = append(kept, p)
		} else {
			d.device.FreeCommandBuffer(p.cmdBuf)
		}
	}
	d.pending = kept
}
