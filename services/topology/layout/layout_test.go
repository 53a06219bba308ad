// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// smallGraph builds a namespace with a deployment chain, well under the
// hierarchical cutoff.
func smallGraph(nodeOrder []string) *model.TopologyGraph {
	if nodeOrder == nil {
		nodeOrder = []string{"Namespace/web", "Deployment/web/app", "ReplicaSet/web/app-1", "Pod/web/app-1-x", "Service/web/app"}
	}
	g := &model.TopologyGraph{SchemaVersion: model.SchemaVersion}
	for _, id := range nodeOrder {
		g.Nodes = append(g.Nodes, model.Node{ID: id})
	}
	addEdge := func(src, dst string, t model.RelationshipType) {
		g.Edges = append(g.Edges, model.Edge{
			ID: model.EdgeID(src, dst, t), Source: src, Target: dst, RelationshipType: t,
			Metadata: model.EdgeMetadata{Confidence: 1.0},
		})
	}
	addEdge("Namespace/web", "Deployment/web/app", model.RelContains)
	addEdge("Deployment/web/app", "ReplicaSet/web/app-1", model.RelOwns)
	addEdge("ReplicaSet/web/app-1", "Pod/web/app-1-x", model.RelOwns)
	addEdge("Service/web/app", "Pod/web/app-1-x", model.RelSelects)
	g.Metadata.LayoutSeed = model.DeriveLayoutSeed(g)
	return g
}

// largeGraph builds a ring big enough to trigger the force path.
func largeGraph(n int) *model.TopologyGraph {
	g := &model.TopologyGraph{SchemaVersion: model.SchemaVersion}
	for i := 0; i < n; i++ {
		g.Nodes = append(g.Nodes, model.Node{ID: fmt.Sprintf("Pod/web/p-%03d", i)})
	}
	for i := 0; i < n; i++ {
		src := g.Nodes[i].ID
		dst := g.Nodes[(i+1)%n].ID
		g.Edges = append(g.Edges, model.Edge{
			ID: model.EdgeID(src, dst, model.RelReferences), Source: src, Target: dst,
			RelationshipType: model.RelReferences,
			Metadata:         model.EdgeMetadata{Confidence: 1.0},
		})
	}
	g.Metadata.LayoutSeed = model.DeriveLayoutSeed(g)
	return g
}

func assertTwoDecimals(t *testing.T, positions map[string]model.Position) {
	t.Helper()
	for id, p := range positions {
		assert.InDelta(t, math.Round(p.X*100), p.X*100, 1e-6, "node %s x not rounded", id)
		assert.InDelta(t, math.Round(p.Y*100), p.Y*100, 1e-6, "node %s y not rounded", id)
	}
}

func TestLayout_HierarchicalForSmallGraphs(t *testing.T) {
	e := NewEngine()
	r, err := e.Layout(context.Background(), smallGraph(nil))
	require.NoError(t, err)

	assert.Equal(t, AlgorithmHierarchical, r.Algorithm)
	assert.False(t, r.Approximate)
	assert.Len(t, r.Positions, 5, "every node gets a position")
	assertTwoDecimals(t, r.Positions)

	// Rank order follows the ownership chain.
	assert.Less(t, r.Positions["Namespace/web"].Y, r.Positions["Deployment/web/app"].Y)
	assert.Less(t, r.Positions["Deployment/web/app"].Y, r.Positions["ReplicaSet/web/app-1"].Y)
	assert.Less(t, r.Positions["ReplicaSet/web/app-1"].Y, r.Positions["Pod/web/app-1-x"].Y)
}

func TestLayout_DeterministicAcrossCallsAndNodeOrder(t *testing.T) {
	e := NewEngine()

	first, err := e.Layout(context.Background(), smallGraph(nil))
	require.NoError(t, err)

	reordered := smallGraph([]string{"Service/web/app", "Pod/web/app-1-x", "Namespace/web", "ReplicaSet/web/app-1", "Deployment/web/app"})
	second, err := e.Layout(context.Background(), reordered)
	require.NoError(t, err)

	assert.Equal(t, first.Seed, second.Seed)
	assert.Equal(t, first.Positions, second.Positions)
}

func TestLayout_ForceForLargeGraphs(t *testing.T) {
	g := largeGraph(80)
	e := NewEngine(WithIterations(50))

	first, err := e.Layout(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmForce, first.Algorithm)
	assert.False(t, first.Approximate)
	assert.Len(t, first.Positions, 80)
	assertTwoDecimals(t, first.Positions)

	second, err := NewEngine(WithIterations(50)).Layout(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, first.Positions, second.Positions, "same content, same seed, same positions")

	require.NoError(t, e.Verify(g, first))
}

func TestLayout_SeedChangesWithContent(t *testing.T) {
	e := NewEngine()
	base, err := e.Layout(context.Background(), smallGraph(nil))
	require.NoError(t, err)

	grown := smallGraph(nil)
	grown.Nodes = append(grown.Nodes, model.Node{ID: "ConfigMap/web/cfg"})
	grown.Metadata.LayoutSeed = model.DeriveLayoutSeed(grown)
	other, err := e.Layout(context.Background(), grown)
	require.NoError(t, err)

	assert.NotEqual(t, base.Seed, other.Seed)
}

func TestLayout_TimeBudgetProducesApproximate(t *testing.T) {
	cache := NewMemoryCache(8)
	e := NewEngine(WithTimeBudget(time.Nanosecond), WithCache(cache), WithIterations(DefaultForceIterations))

	r, err := e.Layout(context.Background(), largeGraph(80))
	require.NoError(t, err)
	assert.True(t, r.Approximate)
	assert.Len(t, r.Positions, 80, "approximate still positions every node")
	assert.Equal(t, 0, cache.Len(), "approximate results are never cached")

	assert.Error(t, e.Verify(largeGraph(80), r))
}

func TestLayout_CacheHit(t *testing.T) {
	cache := NewMemoryCache(8)
	e := NewEngine(WithCache(cache))

	first, err := e.Layout(context.Background(), smallGraph(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	second, err := e.Layout(context.Background(), smallGraph(nil))
	require.NoError(t, err)
	assert.Same(t, first, second, "second call is a cache hit")
}

func TestMemoryCache_EvictsOldest(t *testing.T) {
	c := NewMemoryCache(2)
	c.Put("a", &Result{})
	c.Put("b", &Result{})
	c.Put("c", &Result{})

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestBadgerCache_RoundTripAcrossReopen(t *testing.T) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	defer db.Close()

	cache := NewBadgerCache(db, 0, nil)
	want := &Result{
		Positions:   map[string]model.Position{"Pod/web/p": {X: 1.25, Y: -3.5}},
		Algorithm:   AlgorithmHierarchical,
		Seed:        "00000000deadbeef",
		ContentHash: "00000000cafef00d",
	}
	cache.Put("hash:seed", want)

	got, ok := cache.Get("hash:seed")
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}
