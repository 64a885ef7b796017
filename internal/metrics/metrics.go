// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package metrics exposes Prometheus counters for the query cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Slot pool metrics
var (
	// SlotCommits counts query slots handed out by slot pools.
	SlotCommits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_slot_commits_total",
			Help: "Total query slots committed from slot pools",
		},
	)

	// SlotReserves counts query slots released back to slot pools.
	SlotReserves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_slot_reserves_total",
			Help: "Total query slots reserved back into slot pools",
		},
	)

	// PoolGrowths counts hardware query-set allocations from pool growth.
	PoolGrowths = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_pool_growths_total",
			Help: "Total slot pool growths (one hardware query set each)",
		},
	)
)

// Scheduler metrics
var (
	// Flushes counts submitted command batches.
	Flushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_flushes_total",
			Help: "Total command batches submitted by the scheduler",
		},
	)
)

// Counter metrics
var (
	// BlockingQueries counts blocking readbacks issued by host counters.
	BlockingQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_blocking_queries_total",
			Help: "Total blocking query readbacks",
		},
	)

	// ChainCollapses counts dependency chains collapsed at the depth bound.
	ChainCollapses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_chain_collapses_total",
			Help: "Total counter dependency chains collapsed early",
		},
	)

	// DeviceLosses counts device-loss failures observed during readback.
	DeviceLosses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "querycache_device_losses_total",
			Help: "Total device losses observed by blocking readbacks",
		},
	)
)
