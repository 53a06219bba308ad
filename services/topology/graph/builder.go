// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph maintains the live topology graph. A single Builder owns
// node and edge lifecycle: object-store deltas go in, immutable validated
// snapshots and change deltas come out.
//
// Thread Safety: all Builder methods are safe for concurrent use. Writes
// are serialized internally; reads serve the last published snapshot
// without blocking writers for long.
package graph

import (
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
	"github.com/AleutianAI/AleutianAtlas/services/topology/rules"
	"github.com/AleutianAI/AleutianAtlas/services/topology/store"
	"github.com/AleutianAI/AleutianAtlas/services/topology/validate"
)

// Builder is the single writer for one cluster's topology graph.
type Builder struct {
	engine    *rules.Engine
	validator *validate.Validator
	log       *slog.Logger
	clusterID string
	now       func() time.Time

	mu       sync.RWMutex
	closed   bool
	records  map[string]model.ResourceRecord
	snapshot *model.TopologyGraph
	rebuilds uint64
	rejected uint64
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// WithValidator overrides the snapshot validator.
func WithValidator(v *validate.Validator) Option {
	return func(b *Builder) { b.validator = v }
}

// WithEngine overrides the rules engine.
func WithEngine(e *rules.Engine) Option {
	return func(b *Builder) { b.engine = e }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New creates a Builder for one cluster. The builder starts empty; feed
// it the store's initial listing as an added-records delta.
func New(clusterID string, opts ...Option) *Builder {
	b := &Builder{
		engine:    rules.NewEngine(),
		validator: validate.New(),
		log:       slog.Default(),
		clusterID: clusterID,
		now:       time.Now,
		records:   make(map[string]model.ResourceRecord, 64),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ApplyDelta applies one object-store delta and publishes a new snapshot.
// The returned GraphDelta describes the node and edge churn relative to
// the previous snapshot.
//
// Updates carrying a revision older than the last applied revision for
// the same identity are dropped with a stale-revision warning; the rest
// of the delta still applies. If the rebuilt graph fails validation the
// previous snapshot is retained and ErrInvalidGraph is returned.
func (b *Builder) ApplyDelta(delta store.Delta) (model.GraphDelta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return model.GraphDelta{}, ErrClosed
	}

	var warnings []model.Warning
	upsert := func(rec model.ResourceRecord) {
		id := rec.Identity.ID()
		if prev, ok := b.records[id]; ok && rec.Revision != "" && prev.Revision != "" {
			if model.CompareRevisions(rec.Revision, prev.Revision) < 0 {
				warnings = append(warnings, model.Warning{
					Code:          model.WarnStaleRevision,
					Message:       "dropped update for " + id + ": revision " + rec.Revision + " older than " + prev.Revision,
					AffectedNodes: []string{id},
				})
				return
			}
		}
		b.records[id] = rec
	}
	for _, rec := range delta.Added {
		upsert(rec)
	}
	for _, rec := range delta.Updated {
		upsert(rec)
	}
	for _, id := range delta.Removed {
		delete(b.records, id.ID())
	}

	next, err := b.rebuild(warnings)
	if err != nil {
		b.rejected++
		return model.GraphDelta{}, err
	}

	graphDelta := diff(b.snapshot, next)
	graphDelta.Warnings = warnings
	b.snapshot = next
	b.rebuilds++

	b.log.Debug("graph rebuilt",
		"cluster", b.clusterID,
		"nodes", next.Metadata.Stats.NodeCount,
		"edges", next.Metadata.Stats.EdgeCount,
		"addedNodes", len(graphDelta.AddedNodes),
		"removedNodes", len(graphDelta.RemovedNodes),
		"addedEdges", len(graphDelta.AddedEdges),
		"removedEdges", len(graphDelta.RemovedEdges),
	)
	return graphDelta, nil
}

// rebuild re-derives the full edge set from the current record map and
// assembles a validated snapshot. Removing a record cascades naturally:
// its incident edges simply are not derived again.
func (b *Builder) rebuild(deltaWarnings []model.Warning) (*model.TopologyGraph, error) {
	recs := make([]model.ResourceRecord, 0, len(b.records))
	for _, rec := range b.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Identity.ID() < recs[j].Identity.ID()
	})

	nodes := make([]model.Node, len(recs))
	for i, rec := range recs {
		nodes[i] = model.NodeFromRecord(rec)
	}
	edges, ruleWarnings := b.engine.InferAll(recs)

	// A skipped rule means relationship discovery over the affected
	// records was partial, so the snapshot must say so. Stale-revision
	// drops do not count: the graph still reflects the newest state.
	isComplete := true
	for _, w := range ruleWarnings {
		if w.Code == model.WarnRuleSkipped {
			isComplete = false
			break
		}
	}

	g := &model.TopologyGraph{
		SchemaVersion: model.SchemaVersion,
		Nodes:         nodes,
		Edges:         edges,
		Metadata: model.GraphMetadata{
			ClusterID:   b.clusterID,
			GeneratedAt: b.now().UTC(),
			IsComplete:  isComplete,
			Warnings:    append(append([]model.Warning{}, deltaWarnings...), ruleWarnings...),
		},
	}
	g.Metadata.LayoutSeed = model.DeriveLayoutSeed(g)
	g.Metadata.Stats = g.ComputeStats()

	result := b.validator.Validate(g)
	g.Metadata.Validation = &result
	if !result.IsValid {
		b.log.Error("rebuilt graph failed validation, retaining previous snapshot",
			"cluster", b.clusterID, "errors", len(result.Errors))
		return nil, ErrInvalidGraph
	}
	return g, nil
}

// Snapshot returns the last published graph. Callers must treat it as
// read-only.
func (b *Builder) Snapshot() (*model.TopologyGraph, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.snapshot == nil {
		return nil, ErrGraphUnavailable
	}
	return b.snapshot, nil
}

// Closure returns the subgraph of every node connected to the focal node,
// traversing edges in both directions. maxDepth <= 0 means unbounded.
// When a depth bound stops the traversal early, the returned graph is
// marked incomplete with a bounded-traversal warning.
func (b *Builder) Closure(focalID string, maxDepth int) (*model.TopologyGraph, error) {
	snap, err := b.Snapshot()
	if err != nil {
		return nil, err
	}
	if snap.NodeByID(focalID) == nil {
		return nil, ErrNodeNotFound
	}

	reached, bounded := Traverse(snap, focalID, maxDepth)

	sub := &model.TopologyGraph{
		SchemaVersion: snap.SchemaVersion,
		Metadata: model.GraphMetadata{
			ClusterID:   snap.Metadata.ClusterID,
			GeneratedAt: snap.Metadata.GeneratedAt,
			IsComplete:  true,
		},
	}
	for _, n := range snap.Nodes {
		if reached[n.ID] {
			sub.Nodes = append(sub.Nodes, n)
		}
	}
	for _, e := range snap.Edges {
		if reached[e.Source] && reached[e.Target] {
			sub.Edges = append(sub.Edges, e)
		}
	}
	if bounded {
		sub.Metadata.IsComplete = false
		sub.Metadata.Warnings = append(sub.Metadata.Warnings, model.Warning{
			Code:          model.WarnTraversalBounded,
			Message:       "traversal stopped at the requested depth bound",
			AffectedNodes: []string{focalID},
		})
	}
	sub.Metadata.LayoutSeed = model.DeriveLayoutSeed(sub)
	sub.Metadata.Stats = sub.ComputeStats()
	return sub, nil
}

// Traverse runs a breadth-first walk from focalID treating edges as
// undirected. It returns the reached node set and whether a depth bound
// cut the walk short. maxDepth <= 0 means unbounded.
func Traverse(g *model.TopologyGraph, focalID string, maxDepth int) (map[string]bool, bool) {
	adjacency := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		adjacency[e.Target] = append(adjacency[e.Target], e.Source)
	}

	reached := map[string]bool{focalID: true}
	frontier := []string{focalID}
	bounded := false
	for depth := 0; len(frontier) > 0; depth++ {
		if maxDepth > 0 && depth >= maxDepth {
			// Anything still on the frontier has unexplored neighbors.
			for _, id := range frontier {
				if hasUnvisitedNeighbor(adjacency, reached, id) {
					bounded = true
					break
				}
			}
			break
		}
		var next []string
		for _, id := range frontier {
			for _, neighbor := range adjacency[id] {
				if !reached[neighbor] {
					reached[neighbor] = true
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}
	return reached, bounded
}

func hasUnvisitedNeighbor(adjacency map[string][]string, reached map[string]bool, id string) bool {
	for _, neighbor := range adjacency[id] {
		if !reached[neighbor] {
			return true
		}
	}
	return false
}

// Stats reports builder lifetime counters.
func (b *Builder) Stats() (rebuilds, rejected uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rebuilds, b.rejected
}

// Close shuts the builder down. Subsequent calls return ErrClosed.
func (b *Builder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.snapshot = nil
	b.records = nil
}

// diff computes the churn between two snapshots. prev may be nil.
func diff(prev, next *model.TopologyGraph) model.GraphDelta {
	var d model.GraphDelta

	prevNodes := map[string]model.Node{}
	prevEdges := map[string]model.Edge{}
	if prev != nil {
		for _, n := range prev.Nodes {
			prevNodes[n.ID] = n
		}
		for _, e := range prev.Edges {
			prevEdges[e.Key()] = e
		}
	}

	nextNodes := make(map[string]bool, len(next.Nodes))
	for _, n := range next.Nodes {
		nextNodes[n.ID] = true
		old, existed := prevNodes[n.ID]
		switch {
		case !existed:
			d.AddedNodes = append(d.AddedNodes, n)
		case !reflect.DeepEqual(old, n):
			d.UpdatedNodes = append(d.UpdatedNodes, n)
		}
	}
	for id := range prevNodes {
		if !nextNodes[id] {
			d.RemovedNodes = append(d.RemovedNodes, id)
		}
	}
	sort.Strings(d.RemovedNodes)

	nextEdges := make(map[string]bool, len(next.Edges))
	for _, e := range next.Edges {
		nextEdges[e.Key()] = true
		if _, existed := prevEdges[e.Key()]; !existed {
			d.AddedEdges = append(d.AddedEdges, e)
		}
	}
	for key, e := range prevEdges {
		if !nextEdges[key] {
			d.RemovedEdges = append(d.RemovedEdges, e.ID)
		}
	}
	sort.Strings(d.RemovedEdges)
	return d
}
