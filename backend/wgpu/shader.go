// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/query.wgsl
var queryShaderWGSL string

// Arena buffer sizes in bytes. Counters are vec2<u32> per slot, flags
// one u32 per slot, the op stream one header word plus opWords words
// per record.
const (
	countersBytes = maxArenaSlots * 8
	flagsBytes    = maxArenaSlots * 4
	opsBytes      = (1 + maxBatchOps*opWords) * 4
)

// queryPipeline owns the GPU objects the interpreter shader runs with:
// the compiled pipeline, the arena buffers, and the static bind group
// tying them together.
type queryPipeline struct {
	module     hal.ShaderModule
	bgLayout   hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
	bindGroup  hal.BindGroup

	ops      hal.Buffer
	counters hal.Buffer
	flags    hal.Buffer
	staging  hal.Buffer
}

func newQueryPipeline(device hal.Device, queue hal.Queue) (p *queryPipeline, err error) {
	spirvBytes, err := naga.Compile(queryShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("wgpu: compile query shader: %w", err)
	}
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) | uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 | uint32(spirvBytes[i*4+3])<<24
	}

	p = &queryPipeline{}
	defer func() {
		if err != nil {
			p.destroy(device)
			p = nil
		}
	}()

	p.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "querycache_exec",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create shader module: %w", err)
	}

	storageEntry := func(binding uint32, typ gputypes.BufferBindingType) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		}
	}
	p.bgLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "querycache_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			storageEntry(0, gputypes.BufferBindingTypeReadOnlyStorage),
			storageEntry(1, gputypes.BufferBindingTypeStorage),
			storageEntry(2, gputypes.BufferBindingTypeStorage),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group layout: %w", err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "querycache_pl",
		BindGroupLayouts: []hal.BindGroupLayout{p.bgLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	p.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "querycache_exec",
		Layout: p.pipeLayout,
		Compute: hal.ComputeState{
			Module:     p.module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create compute pipeline: %w", err)
	}

	mkBuf := func(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
		buf, bufErr := device.CreateBuffer(&hal.BufferDescriptor{
			Label: label,
			Size:  size,
			Usage: usage,
		})
		if bufErr != nil {
			return nil, fmt.Errorf("wgpu: create %s buffer: %w", label, bufErr)
		}
		return buf, nil
	}
	if p.ops, err = mkBuf("querycache_ops", opsBytes, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
		return nil, err
	}
	if p.counters, err = mkBuf("querycache_counters", countersBytes, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst); err != nil {
		return nil, err
	}
	if p.flags, err = mkBuf("querycache_flags", flagsBytes, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
		return nil, err
	}
	if p.staging, err = mkBuf("querycache_staging", countersBytes, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst); err != nil {
		return nil, err
	}

	// The arena starts zeroed: no samples counted, no slot accumulating,
	// an empty op stream.
	queue.WriteBuffer(p.counters, 0, make([]byte, countersBytes))
	queue.WriteBuffer(p.flags, 0, make([]byte, flagsBytes))
	queue.WriteBuffer(p.ops, 0, make([]byte, 4))

	bufEntry := func(binding uint32, buf hal.Buffer) gputypes.BindGroupEntry {
		return gputypes.BindGroupEntry{
			Binding: binding,
			Resource: gputypes.BufferBinding{
				Buffer: buf.NativeHandle(),
				Offset: 0,
				Size:   0, // 0 = entire buffer
			},
		}
	}
	p.bindGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "querycache_bg",
		Layout: p.bgLayout,
		Entries: []gputypes.BindGroupEntry{
			bufEntry(0, p.ops),
			bufEntry(1, p.counters),
			bufEntry(2, p.flags),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group: %w", err)
	}

	return p, nil
}

// destroy releases every GPU object the pipeline holds. Safe to call on
// a partially built pipeline.
func (p *queryPipeline) destroy(device hal.Device) {
	if p.bindGroup != nil {
		device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	for _, buf := range []hal.Buffer{p.ops, p.counters, p.flags, p.staging} {
		if buf != nil {
			device.DestroyBuffer(buf)
		}
	}
	p.ops, p.counters, p.flags, p.staging = nil, nil, nil, nil
	if p.pipeline != nil {
		device.DestroyComputePipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bgLayout != nil {
		device.DestroyBindGroupLayout(p.bgLayout)
		p.bgLayout = nil
	}
	if p.module != nil {
		device.DestroyShaderModule(p.module)
		p.module = nil
	}
}
