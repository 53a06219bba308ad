// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "atlas"
	metricsSubsystem = "topology"
)

// Metrics holds the Prometheus instruments for the topology service.
//
// Thread Safety: all instrument operations are safe for concurrent use.
type Metrics struct {
	// RequestsTotal counts API requests by endpoint and status class.
	RequestsTotal *prometheus.CounterVec

	// RebuildsTotal counts graph rebuilds by outcome (applied, rejected).
	RebuildsTotal *prometheus.CounterVec

	// RebuildSeconds measures one delta-to-snapshot rebuild.
	RebuildSeconds prometheus.Histogram

	// GraphNodes and GraphEdges track the current snapshot size.
	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge

	// WarningsTotal counts graph warnings by code.
	WarningsTotal *prometheus.CounterVec

	// LayoutsTotal counts served layouts by algorithm.
	LayoutsTotal *prometheus.CounterVec

	// LayoutCacheTotal counts layout cache lookups by result (hit, miss).
	LayoutCacheTotal *prometheus.CounterVec

	// LayoutVerifyFailures counts determinism self-check failures.
	LayoutVerifyFailures prometheus.Counter

	// BlastRadiusTotal counts impact analyses by severity.
	BlastRadiusTotal *prometheus.CounterVec

	// StreamClients tracks connected websocket subscribers.
	StreamClients prometheus.Gauge
}

// NewMetrics creates and registers the instrument set on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "requests_total",
			Help: "API requests by endpoint and status class.",
		}, []string{"endpoint", "status"}),
		RebuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "graph_rebuilds_total",
			Help: "Graph rebuilds by outcome.",
		}, []string{"outcome"}),
		RebuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name:    "graph_rebuild_seconds",
			Help:    "Duration of one delta-to-snapshot rebuild.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "graph_nodes",
			Help: "Nodes in the current snapshot.",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "graph_edges",
			Help: "Edges in the current snapshot.",
		}),
		WarningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "graph_warnings_total",
			Help: "Graph warnings by code.",
		}, []string{"code"}),
		LayoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "layouts_total",
			Help: "Served layouts by algorithm.",
		}, []string{"algorithm"}),
		LayoutCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "layout_cache_total",
			Help: "Layout cache lookups by result.",
		}, []string{"result"}),
		LayoutVerifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "layout_verify_failures_total",
			Help: "Layout determinism self-check failures.",
		}),
		BlastRadiusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "blast_radius_total",
			Help: "Impact analyses by severity.",
		}, []string{"severity"}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem,
			Name: "stream_clients",
			Help: "Connected websocket subscribers.",
		}),
	}

	collectors := []prometheus.Collector{
		m.RequestsTotal, m.RebuildsTotal, m.RebuildSeconds,
		m.GraphNodes, m.GraphEdges, m.WarningsTotal,
		m.LayoutsTotal, m.LayoutCacheTotal, m.LayoutVerifyFailures,
		m.BlastRadiusTotal, m.StreamClients,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
