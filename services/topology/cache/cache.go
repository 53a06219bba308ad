// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache holds a short-TTL cache of derived topology views, keyed
// by (cluster, namespace). The live builder always has the truth; this
// cache only absorbs repeated reads of expensive derived views between
// graph changes. Callers wanting a guaranteed-fresh answer bypass it with
// a force refresh.
package cache

import (
	"sync"
	"time"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// DefaultTTL is how long a cached view stays valid.
const DefaultTTL = 30 * time.Second

// Key identifies one cached view.
type Key struct {
	ClusterID string
	Namespace string
}

type entry struct {
	graph   *model.TopologyGraph
	expires time.Time
}

// SnapshotCache is a TTL cache of topology views.
//
// Thread Safety: safe for concurrent use.
type SnapshotCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries map[Key]entry
	hits    uint64
	misses  uint64
}

// Option configures a SnapshotCache.
type Option func(*SnapshotCache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *SnapshotCache) { c.ttl = ttl }
}

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(c *SnapshotCache) { c.clock = clock }
}

// New creates a SnapshotCache with the default TTL.
func New(opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		ttl:     DefaultTTL,
		clock:   time.Now,
		entries: make(map[Key]entry, 8),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached view for key if present and unexpired.
func (c *SnapshotCache) Get(key Key) (*model.TopologyGraph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.clock().After(e.expires) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	return e.graph, true
}

// Put stores a view under key.
func (c *SnapshotCache) Put(key Key, g *model.TopologyGraph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{graph: g, expires: c.clock().Add(c.ttl)}
}

// Invalidate removes one view.
func (c *SnapshotCache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateAll drops every view, called when the underlying graph
// changes.
func (c *SnapshotCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]entry, 8)
}

// Stats returns lifetime hit and miss counters.
func (c *SnapshotCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
