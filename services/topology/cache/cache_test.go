// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

func TestSnapshotCache_HitWithinTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(WithTTL(time.Minute), WithClock(func() time.Time { return now }))

	key := Key{ClusterID: "demo", Namespace: "web"}
	g := &model.TopologyGraph{SchemaVersion: model.SchemaVersion}
	c.Put(key, g)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Same(t, g, got)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(0), misses)
}

func TestSnapshotCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(WithTTL(time.Minute), WithClock(func() time.Time { return now }))

	key := Key{ClusterID: "demo", Namespace: "web"}
	c.Put(key, &model.TopologyGraph{})

	now = now.Add(2 * time.Minute)
	_, ok := c.Get(key)
	assert.False(t, ok)

	_, misses := c.Stats()
	assert.Equal(t, uint64(1), misses)
}

func TestSnapshotCache_NamespacesAreIndependent(t *testing.T) {
	c := New()
	c.Put(Key{ClusterID: "demo", Namespace: "web"}, &model.TopologyGraph{})

	_, ok := c.Get(Key{ClusterID: "demo", Namespace: "db"})
	assert.False(t, ok)
	_, ok = c.Get(Key{ClusterID: "other", Namespace: "web"})
	assert.False(t, ok)
}

func TestSnapshotCache_InvalidateAll(t *testing.T) {
	c := New()
	c.Put(Key{ClusterID: "demo"}, &model.TopologyGraph{})
	c.Put(Key{ClusterID: "demo", Namespace: "web"}, &model.TopologyGraph{})

	c.InvalidateAll()
	_, ok := c.Get(Key{ClusterID: "demo"})
	assert.False(t, ok)
	_, ok = c.Get(Key{ClusterID: "demo", Namespace: "web"})
	assert.False(t, ok)
}
