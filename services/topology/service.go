// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package topology assembles the graph engine behind an HTTP-facing
// service: it feeds object-store deltas into the builder, serves cached
// namespace views, layouts, blast-radius analyses, and exports, and
// fans incremental updates out to websocket subscribers.
package topology

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianAtlas/services/topology/cache"
	"github.com/AleutianAI/AleutianAtlas/services/topology/export"
	"github.com/AleutianAI/AleutianAtlas/services/topology/graph"
	"github.com/AleutianAI/AleutianAtlas/services/topology/impact"
	"github.com/AleutianAI/AleutianAtlas/services/topology/layout"
	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
	"github.com/AleutianAI/AleutianAtlas/services/topology/rules"
	"github.com/AleutianAI/AleutianAtlas/services/topology/store"
	"github.com/AleutianAI/AleutianAtlas/services/topology/telemetry"
	"github.com/AleutianAI/AleutianAtlas/services/topology/validate"
)

// configValidate checks Config structs against their struct tags.
var configValidate = validator.New()

// Config controls the topology service.
type Config struct {
	// ClusterID names the cluster this service watches.
	ClusterID string `yaml:"cluster_id" validate:"required"`

	// CacheTTL bounds how long a namespace view may be served from
	// cache before it is recomputed from the current snapshot.
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`

	// ConfidenceFloor is the display threshold below which edges are
	// flagged LowConfidence.
	ConfidenceFloor float64 `yaml:"confidence_floor" validate:"gte=0,lte=1"`

	// HierarchicalCutoff is the node count at or below which the layout
	// engine uses the hierarchical algorithm.
	HierarchicalCutoff int `yaml:"hierarchical_cutoff" validate:"gt=0"`

	// ForceIterations is the iteration budget for force-directed layout.
	ForceIterations int `yaml:"force_iterations" validate:"gt=0"`

	// LayoutTimeBudget caps one layout computation. Zero means no cap.
	LayoutTimeBudget time.Duration `yaml:"layout_time_budget" validate:"gte=0"`

	// VerifyLayouts recomputes every exact layout after serving it and
	// counts mismatches. Doubles layout cost; meant for debug runs.
	VerifyLayouts bool `yaml:"verify_layouts"`
}

// DefaultConfig returns the production defaults for clusterID.
func DefaultConfig(clusterID string) Config {
	return Config{
		ClusterID:          clusterID,
		CacheTTL:           cache.DefaultTTL,
		ConfidenceFloor:    validate.DefaultConfidenceFloor,
		HierarchicalCutoff: layout.DefaultHierarchicalCutoff,
		ForceIterations:    layout.DefaultForceIterations,
		LayoutTimeBudget:   2 * time.Second,
	}
}

// UnmarshalYAML decodes the duration fields from Go duration strings
// ("30s", "1m") and leaves absent keys at their current values, so a
// partial config section overrides only what it names.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ClusterID          *string  `yaml:"cluster_id"`
		CacheTTL           *string  `yaml:"cache_ttl"`
		ConfidenceFloor    *float64 `yaml:"confidence_floor"`
		HierarchicalCutoff *int     `yaml:"hierarchical_cutoff"`
		ForceIterations    *int     `yaml:"force_iterations"`
		LayoutTimeBudget   *string  `yaml:"layout_time_budget"`
		VerifyLayouts      *bool    `yaml:"verify_layouts"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.ClusterID != nil {
		c.ClusterID = *raw.ClusterID
	}
	if raw.CacheTTL != nil {
		d, err := time.ParseDuration(*raw.CacheTTL)
		if err != nil {
			return fmt.Errorf("cache_ttl: %w", err)
		}
		c.CacheTTL = d
	}
	if raw.ConfidenceFloor != nil {
		c.ConfidenceFloor = *raw.ConfidenceFloor
	}
	if raw.HierarchicalCutoff != nil {
		c.HierarchicalCutoff = *raw.HierarchicalCutoff
	}
	if raw.ForceIterations != nil {
		c.ForceIterations = *raw.ForceIterations
	}
	if raw.LayoutTimeBudget != nil {
		d, err := time.ParseDuration(*raw.LayoutTimeBudget)
		if err != nil {
			return fmt.Errorf("layout_time_budget: %w", err)
		}
		c.LayoutTimeBudget = d
	}
	if raw.VerifyLayouts != nil {
		c.VerifyLayouts = *raw.VerifyLayouts
	}
	return nil
}

// Validate checks the config against its struct tags.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid topology config: %w", err)
	}
	return nil
}

// Service owns the builder, layout engine, caches, and stream hub for
// one cluster.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Service struct {
	cfg     Config
	log     *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics

	store       store.Store
	builder     *graph.Builder
	layouts     *layout.Engine
	layoutCache layout.Cache
	viewCache   *cache.SnapshotCache
	hub         *Hub

	mu      sync.RWMutex
	ready   bool
	stopped bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithTelemetry wires the tracer and metric instruments.
func WithTelemetry(tel *telemetry.Telemetry) ServiceOption {
	return func(s *Service) {
		s.tracer = tel.Tracer
		s.metrics = tel.Metrics
	}
}

// WithLayoutCache installs a layout cache, typically the badger-backed
// one so positions survive a restart.
func WithLayoutCache(c layout.Cache) ServiceOption {
	return func(s *Service) { s.layoutCache = c }
}

// NewService creates a Service watching st. Call Run to start the
// delta loop.
func NewService(cfg Config, st store.Store, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		log:       slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer("topology"),
		store:     st,
		viewCache: cache.New(cache.WithTTL(cfg.CacheTTL)),
	}
	for _, opt := range opts {
		opt(s)
	}

	layoutOpts := []layout.Option{
		layout.WithCutoff(cfg.HierarchicalCutoff),
		layout.WithIterations(cfg.ForceIterations),
		layout.WithTimeBudget(cfg.LayoutTimeBudget),
		layout.WithLogger(s.log),
	}
	if s.layoutCache != nil {
		layoutOpts = append(layoutOpts, layout.WithCache(s.layoutCache))
	}
	if s.metrics != nil {
		m := s.metrics
		layoutOpts = append(layoutOpts, layout.WithCacheObserver(func(hit bool) {
			if hit {
				m.LayoutCacheTotal.WithLabelValues("hit").Inc()
			} else {
				m.LayoutCacheTotal.WithLabelValues("miss").Inc()
			}
		}))
	}
	s.layouts = layout.NewEngine(layoutOpts...)

	s.builder = graph.New(cfg.ClusterID,
		graph.WithLogger(s.log),
		graph.WithEngine(rules.NewEngine()),
		graph.WithValidator(validate.New(validate.WithConfidenceFloor(cfg.ConfidenceFloor))),
	)
	s.hub = NewHub(s.log, s.metrics)
	return s, nil
}

// Run performs the initial list, then applies watch deltas until ctx is
// done. It returns the ctx error on normal shutdown.
func (s *Service) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	for {
		if err := s.syncAndWatch(ctx); err != nil {
			if ctx.Err() != nil {
				s.shutdown()
				return ctx.Err()
			}
			s.log.Error("watch stream failed, resynchronizing", "error", err)
			select {
			case <-ctx.Done():
				s.shutdown()
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

// syncAndWatch opens the watch, lists the full record set, applies it as
// one delta, then consumes the stream until it closes. The watch opens
// first so changes racing the list are queued rather than lost; revision
// staleness drops anything the list already covered.
func (s *Service) syncAndWatch(ctx context.Context) error {
	deltas, err := s.store.Watch(ctx)
	if err != nil {
		return fmt.Errorf("opening watch: %w", err)
	}

	records, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing resources: %w", err)
	}
	s.apply(ctx, store.Delta{Added: records})

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delta, ok := <-deltas:
			if !ok {
				return errors.New("watch channel closed")
			}
			if delta.Empty() {
				continue
			}
			s.apply(ctx, delta)
		}
	}
}

// apply feeds one store delta through the builder and publishes the
// resulting churn.
func (s *Service) apply(ctx context.Context, delta store.Delta) {
	ctx, span := s.tracer.Start(ctx, "topology.apply_delta")
	defer span.End()
	log := telemetry.LoggerWithTrace(ctx, s.log)

	start := time.Now()
	_, buildSpan := s.tracer.Start(ctx, "topology.build_snapshot")
	graphDelta, err := s.builder.ApplyDelta(delta)
	buildSpan.End()
	elapsed := time.Since(start)

	if err != nil {
		log.Error("delta rejected", "error", err)
		s.countRebuild("rejected", elapsed)
		return
	}
	s.countRebuild("applied", elapsed)

	snapshot, snapErr := s.builder.Snapshot()
	if snapErr == nil && s.metrics != nil {
		s.metrics.GraphNodes.Set(float64(len(snapshot.Nodes)))
		s.metrics.GraphEdges.Set(float64(len(snapshot.Edges)))
		for _, w := range snapshot.Metadata.Warnings {
			s.metrics.WarningsTotal.WithLabelValues(string(w.Code)).Inc()
		}
	}

	if graphDelta.Empty() {
		return
	}
	s.viewCache.InvalidateAll()
	s.hub.Broadcast(StreamEvent{Type: StreamEventDelta, Delta: &graphDelta})
	log.Info("snapshot published",
		"added", len(graphDelta.AddedNodes),
		"updated", len(graphDelta.UpdatedNodes),
		"removed", len(graphDelta.RemovedNodes),
		"rebuild_ms", elapsed.Milliseconds())
}

func (s *Service) countRebuild(outcome string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RebuildsTotal.WithLabelValues(outcome).Inc()
	s.metrics.RebuildSeconds.Observe(elapsed.Seconds())
}

// Topology returns the current graph, optionally filtered to one
// namespace. Namespace views are cached per (cluster, namespace) with
// the configured TTL; force bypasses the cache.
func (s *Service) Topology(ctx context.Context, namespace string, force bool) (*model.TopologyGraph, error) {
	_, span := s.tracer.Start(ctx, "topology.get")
	defer span.End()

	if err := s.checkReady(); err != nil {
		return nil, err
	}

	key := cache.Key{ClusterID: s.cfg.ClusterID, Namespace: namespace}
	if !force {
		if g, ok := s.viewCache.Get(key); ok {
			return g, nil
		}
	}

	snapshot, err := s.builder.Snapshot()
	if err != nil {
		return nil, err
	}
	view := snapshot
	if namespace != "" {
		view = filterNamespace(snapshot, namespace)
	}
	s.viewCache.Put(key, view)
	return view, nil
}

// Resource returns the closure around one resource, bounded by depth.
// depth <= 0 means unbounded.
func (s *Service) Resource(ctx context.Context, kind, namespace, name string, depth int) (*model.TopologyGraph, error) {
	_, span := s.tracer.Start(ctx, "topology.resource")
	defer span.End()

	if err := s.checkReady(); err != nil {
		return nil, err
	}
	id := model.Identity{Kind: kind, Namespace: namespace, Name: name}.ID()
	return s.builder.Closure(id, depth)
}

// Layout computes or serves the cached layout for the current graph.
func (s *Service) Layout(ctx context.Context, namespace string) (*layout.Result, error) {
	ctx, span := s.tracer.Start(ctx, "topology.layout")
	defer span.End()

	g, err := s.Topology(ctx, namespace, false)
	if err != nil {
		return nil, err
	}
	result, err := s.layouts.Layout(ctx, g)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.LayoutsTotal.WithLabelValues(result.Algorithm).Inc()
	}
	if s.cfg.VerifyLayouts && !result.Approximate {
		if err := s.layouts.Verify(g, result); err != nil {
			if s.metrics != nil {
				s.metrics.LayoutVerifyFailures.Inc()
			}
			telemetry.LoggerWithTrace(ctx, s.log).Error("layout self-check failed", "error", err)
		}
	}
	return result, nil
}

// BlastRadius analyzes the impact of removing the resource with the
// given node id. maxHops <= 0 means unbounded.
func (s *Service) BlastRadius(ctx context.Context, focalID string, maxHops int) (*impact.Analysis, error) {
	_, span := s.tracer.Start(ctx, "topology.blast_radius")
	defer span.End()

	if err := s.checkReady(); err != nil {
		return nil, err
	}
	snapshot, err := s.builder.Snapshot()
	if err != nil {
		return nil, err
	}
	analysis, err := impact.Analyze(snapshot, focalID, impact.Options{MaxHops: maxHops})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.BlastRadiusTotal.WithLabelValues(string(analysis.Severity)).Inc()
	}
	return analysis, nil
}

// Export writes the current graph with its layout to w in the given
// format.
func (s *Service) Export(ctx context.Context, w io.Writer, namespace string, format export.Format) error {
	ctx, span := s.tracer.Start(ctx, "topology.export")
	defer span.End()

	g, err := s.Topology(ctx, namespace, false)
	if err != nil {
		return err
	}
	result, err := s.layouts.Layout(ctx, g)
	if err != nil {
		return err
	}
	return export.Export(w, g, result, format)
}

// Subscribe registers a websocket client and returns the snapshot it
// should receive first.
func (s *Service) Subscribe(ctx context.Context) (*model.TopologyGraph, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	return s.builder.Snapshot()
}

// StreamHub exposes the hub for the websocket handler.
func (s *Service) StreamHub() *Hub { return s.hub }

// Ready reports whether an initial snapshot has been published.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready && !s.stopped
}

// Stats returns current snapshot counts for the readiness endpoint.
// Zero counts with a nil error mean the graph is empty but live.
func (s *Service) Stats() (nodes, edges int, err error) {
	snapshot, err := s.builder.Snapshot()
	if err != nil {
		return 0, 0, err
	}
	return len(snapshot.Nodes), len(snapshot.Edges), nil
}

func (s *Service) checkReady() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}
	if !s.ready {
		return ErrNotReady
	}
	return nil
}

func (s *Service) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.builder.Close()
}

// filterNamespace returns the subgraph of nodes in namespace plus every
// node directly connected to one of them, whatever its scope. Dropping
// out-of-namespace neighbors would break relationship closure around the
// kept nodes. Edges survive only when both endpoints survive.
func filterNamespace(g *model.TopologyGraph, namespace string) *model.TopologyGraph {
	keep := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Namespace == namespace {
			keep[n.ID] = true
		}
	}
	neighbors := make(map[string]bool)
	for _, e := range g.Edges {
		if keep[e.Source] {
			neighbors[e.Target] = true
		}
		if keep[e.Target] {
			neighbors[e.Source] = true
		}
	}
	for id := range neighbors {
		keep[id] = true
	}

	sub := &model.TopologyGraph{
		SchemaVersion: g.SchemaVersion,
		Metadata:      g.Metadata,
	}
	for _, n := range g.Nodes {
		if keep[n.ID] {
			sub.Nodes = append(sub.Nodes, n)
		}
	}
	for _, e := range g.Edges {
		if keep[e.Source] && keep[e.Target] {
			sub.Edges = append(sub.Edges, e)
		}
	}
	sub.Metadata.LayoutSeed = model.DeriveLayoutSeed(sub)
	sub.Metadata.Stats = sub.ComputeStats()
	return sub
}
