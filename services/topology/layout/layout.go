// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layout computes deterministic 2D positions for topology graphs.
// Small graphs get a hierarchical arrangement; larger ones a seeded
// force-directed one. Identical graph content always produces identical
// positions, across calls and across process restarts, unless a time
// budget forces an approximate result.
package layout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

const (
	// AlgorithmHierarchical is used for graphs at or below the node
	// cutoff.
	AlgorithmHierarchical = "hierarchical"

	// AlgorithmForce is the seeded force-directed algorithm for larger
	// graphs.
	AlgorithmForce = "force-directed"

	// DefaultHierarchicalCutoff is the node count at or below which the
	// hierarchical algorithm applies.
	DefaultHierarchicalCutoff = 50

	// DefaultForceIterations is the fixed simulation length. Fixed so two
	// runs over the same graph walk the same trajectory.
	DefaultForceIterations = 300
)

// Result is one computed layout. Positions are rounded to two decimals,
// which is the precision the determinism guarantee is stated at.
type Result struct {
	Positions   map[string]model.Position `json:"positions"`
	Algorithm   string                    `json:"algorithm"`
	Seed        string                    `json:"seed"`
	ContentHash string                    `json:"contentHash"`

	// Approximate marks a layout whose simulation was cut short by the
	// time budget. Approximate results are never cached.
	Approximate bool `json:"approximate,omitempty"`
}

// Engine computes and caches layouts.
//
// Thread Safety: safe for concurrent use. Concurrent requests for the
// same graph content collapse into one computation.
type Engine struct {
	cutoff     int
	iterations int
	timeBudget time.Duration
	cache      Cache
	log        *slog.Logger
	observe    func(hit bool)
	group      singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithCutoff overrides the hierarchical node cutoff.
func WithCutoff(n int) Option {
	return func(e *Engine) { e.cutoff = n }
}

// WithIterations overrides the force simulation length.
func WithIterations(n int) Option {
	return func(e *Engine) { e.iterations = n }
}

// WithTimeBudget bounds one layout computation. Zero means unbounded.
func WithTimeBudget(d time.Duration) Option {
	return func(e *Engine) { e.timeBudget = d }
}

// WithCache sets the layout cache.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCacheObserver installs a callback invoked on every cache lookup.
// Used to feed hit/miss counters without coupling the engine to a
// metrics library.
func WithCacheObserver(fn func(hit bool)) Option {
	return func(e *Engine) { e.observe = fn }
}

// NewEngine creates a layout engine. Without WithCache, results are
// recomputed every call.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cutoff:     DefaultHierarchicalCutoff,
		iterations: DefaultForceIterations,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Layout computes positions for every node in g. Cache hits are keyed by
// (content hash, seed) so a restart with a warm persistent cache serves
// the same positions it did before.
func (e *Engine) Layout(ctx context.Context, g *model.TopologyGraph) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := g.Metadata.LayoutSeed
	if seed == "" {
		seed = model.DeriveLayoutSeed(g)
	}
	contentHash := model.ContentHash(g)
	key := contentHash + ":" + seed

	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if e.observe != nil {
				e.observe(true)
			}
			return cached, nil
		}
		if e.observe != nil {
			e.observe(false)
		}
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		result := e.compute(g, seed, contentHash)
		if e.cache != nil && !result.Approximate {
			e.cache.Put(key, result)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (e *Engine) compute(g *model.TopologyGraph, seed, contentHash string) *Result {
	start := time.Now()
	result := &Result{
		Seed:        seed,
		ContentHash: contentHash,
	}
	if len(g.Nodes) <= e.cutoff {
		result.Algorithm = AlgorithmHierarchical
		result.Positions = hierarchicalPositions(g)
	} else {
		result.Algorithm = AlgorithmForce
		var approximate bool
		result.Positions, approximate = forcePositions(g, model.LayoutSeedValue(g), e.iterations, e.deadline(start))
		result.Approximate = approximate
	}
	roundPositions(result.Positions)

	e.log.Debug("layout computed",
		"algorithm", result.Algorithm,
		"nodes", len(g.Nodes),
		"approximate", result.Approximate,
		"elapsed", time.Since(start),
	)
	return result
}

func (e *Engine) deadline(start time.Time) time.Time {
	if e.timeBudget <= 0 {
		return time.Time{}
	}
	return start.Add(e.timeBudget)
}

// Verify recomputes the layout for g without the cache and reports
// whether it matches result position for position. An approximate result
// never verifies; callers should not expect it to reproduce.
func (e *Engine) Verify(g *model.TopologyGraph, result *Result) error {
	if result.Approximate {
		return fmt.Errorf("approximate layout is not reproducible")
	}
	fresh := e.compute(g, result.Seed, result.ContentHash)
	if fresh.Approximate {
		return fmt.Errorf("verification run exceeded the time budget")
	}
	if len(fresh.Positions) != len(result.Positions) {
		return fmt.Errorf("position count mismatch: %d != %d", len(fresh.Positions), len(result.Positions))
	}
	for id, p := range result.Positions {
		q, ok := fresh.Positions[id]
		if !ok {
			return fmt.Errorf("node %s missing from recomputed layout", id)
		}
		if p != q {
			return fmt.Errorf("node %s moved: (%.2f,%.2f) != (%.2f,%.2f)", id, p.X, p.Y, q.X, q.Y)
		}
	}
	return nil
}

// roundPositions snaps every coordinate to two decimals in place.
func roundPositions(positions map[string]model.Position) {
	for id, p := range positions {
		positions[id] = model.Position{X: round2(p.X), Y: round2(p.Y)}
	}
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
