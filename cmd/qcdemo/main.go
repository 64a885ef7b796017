// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command qcdemo exercises the query cache end to end. It opens a
// backend through the registry, simulates frames that draw inside an
// occlusion query, and reads the per-frame sample counts back through
// bound guest addresses.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gogpu/querycache"
	"github.com/gogpu/querycache/backend"
	_ "github.com/gogpu/querycache/backend/sim"
	_ "github.com/gogpu/querycache/backend/wgpu"
	"github.com/gogpu/querycache/driver"
	"github.com/gogpu/querycache/scheduler"
)

// resultBase is where the demo binds per-frame query results in its fake
// guest address space.
const resultBase = 0x1000

func main() {
	// A .env file seeds the environment when present; real variables win.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("QC", &cfg); err != nil {
		fmt.Fprintln(os.Stderr, "qcdemo:", err)
		os.Exit(1)
	}
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "backend name, or 'auto' to probe")
	flag.IntVar(&cfg.Frames, "frames", cfg.Frames, "frames to simulate")
	flag.IntVar(&cfg.Draws, "draws", cfg.Draws, "draws per frame")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "prometheus listen address (empty disables)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, or error")
	flag.Parse()

	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "qcdemo:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	querycache.SetLogger(logger)
	scheduler.SetLogger(logger)

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("metrics server listening", "address", cfg.MetricsAddr)
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	var (
		dev driver.Device
		err error
	)
	if cfg.Backend == "auto" {
		dev, err = backend.Default()
	} else {
		dev, err = backend.Open(cfg.Backend)
	}
	if err != nil {
		logger.Error("backend open failed", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	logger.Info("backend opened", "backend", cfg.Backend, "available", backend.Available())

	if err := runFrames(logger, dev, &cfg); err != nil {
		logger.Error("demo failed", "error", err)
		dev.Destroy()
		os.Exit(1)
	}
	dev.Destroy()
}

// runFrames drives the cache through cfg.Frames simulated frames and
// logs the occlusion count read back for each.
func runFrames(logger *slog.Logger, dev driver.Device, cfg *Config) error {
	sched := scheduler.New(dev)
	mem := newDemoMemory()
	cache, err := querycache.New(querycache.Config{
		Device:    dev,
		Scheduler: sched,
		Memory:    mem,
		GrowStep:  cfg.GrowStep,
	})
	if err != nil {
		return err
	}

	// Per frame: reset, draw inside the query, then read the count the
	// way a game polling its occlusion results would. Counters chain
	// until the stream is reset, so the reset is what keeps frames
	// independent. Query flushes the scheduler on its own when the
	// counter's batch has not been submitted yet.
	stream := cache.Stream(querycache.KindOcclusion)
	for frame := 0; frame < cfg.Frames; frame++ {
		if err := stream.Enable(); err != nil {
			return err
		}
		for draw := 0; draw < cfg.Draws; draw++ {
			samples := uint64((frame + 1) * (draw + 1))
			sched.Record(func(cb driver.CommandBuffer) {
				cb.EmitSamples(samples)
			})
		}
		stream.Disable()

		// Raw per-slot value first, without the accumulation Query adds
		// on top. With the stream reset every frame the two agree.
		raw, err := stream.Last().BlockingQuery()
		if err != nil {
			return err
		}
		logger.Debug("raw slot readback", "frame", frame, "samples", raw)

		addr := uint64(resultBase + frame*8)
		count, err := cache.Query(addr, querycache.KindOcclusion)
		if err != nil {
			return err
		}
		logger.Info("frame occlusion count",
			"frame", frame,
			"addr", fmt.Sprintf("%#x", addr),
			"samples", count)
		stream.Reset()
	}

	// Every query resolved above is still bound; flushing the region
	// writes the values through to guest memory.
	if err := cache.FlushRegion(resultBase, uint64(cfg.Frames*8)); err != nil {
		return err
	}
	last := mem.read(uint64(resultBase + (cfg.Frames-1)*8))
	logger.Info("results flushed to guest memory", "frames", cfg.Frames, "last", last)

	return cache.Close()
}

// demoMemory is a tiny guest address space: bound query results land here
// as 64-bit words.
type demoMemory struct {
	mu     sync.Mutex
	values map[uint64]uint64
}

func newDemoMemory() *demoMemory {
	return &demoMemory{values: make(map[uint64]uint64)}
}

func (m *demoMemory) WriteUint64(addr, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[addr] = value
}

func (m *demoMemory) read(addr uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[addr]
}
