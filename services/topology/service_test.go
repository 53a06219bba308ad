// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package topology

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAtlas/services/topology/export"
	"github.com/AleutianAI/AleutianAtlas/services/topology/graph"
	"github.com/AleutianAI/AleutianAtlas/services/topology/impact"
	"github.com/AleutianAI/AleutianAtlas/services/topology/layout"
	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
	"github.com/AleutianAI/AleutianAtlas/services/topology/store"
)

// newDemoService starts a service over the demo fixture and waits for
// the first snapshot.
func newDemoService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	store.LoadDemoFixture(st)

	svc, err := NewService(DefaultConfig("demo"), st)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go svc.Run(ctx)

	require.Eventually(t, svc.Ready, 2*time.Second, 10*time.Millisecond,
		"service never published a first snapshot")
	return svc, st
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig("demo")
	require.NoError(t, cfg.Validate())

	cfg.ClusterID = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("demo")
	cfg.ConfidenceFloor = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("demo")
	cfg.HierarchicalCutoff = 0
	assert.Error(t, cfg.Validate())
}

func TestService_NotReadyBeforeRun(t *testing.T) {
	st := store.NewMemoryStore()
	svc, err := NewService(DefaultConfig("demo"), st)
	require.NoError(t, err)

	_, err = svc.Topology(context.Background(), "", false)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = svc.BlastRadius(context.Background(), "Pod/web/x", 0)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestService_TopologyServesSnapshot(t *testing.T) {
	svc, _ := newDemoService(t)

	g, err := svc.Topology(context.Background(), "", false)
	require.NoError(t, err)
	assert.Equal(t, model.SchemaVersion, g.SchemaVersion)
	assert.NotEmpty(t, g.Nodes)
	assert.NotEmpty(t, g.Edges)
	assert.True(t, g.Metadata.Validation.IsValid)
}

func TestService_NamespaceViewKeepsDirectNeighbors(t *testing.T) {
	svc, _ := newDemoService(t)

	g, err := svc.Topology(context.Background(), "web", false)
	require.NoError(t, err)
	require.NotEmpty(t, g.Nodes)

	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	// Cluster-scoped neighbors of web resources stay visible.
	assert.True(t, ids["Node/worker-1"], "scheduled node missing from view")
	assert.True(t, ids["PersistentVolume/pv-0001"], "bound volume missing from view")

	for _, e := range g.Edges {
		assert.True(t, ids[e.Source], "edge source outside view: %s", e.Source)
		assert.True(t, ids[e.Target], "edge target outside view: %s", e.Target)
	}

	empty, err := svc.Topology(context.Background(), "no-such-namespace", false)
	require.NoError(t, err)
	assert.Empty(t, empty.Nodes)
	assert.Empty(t, empty.Edges)
}

func TestService_NamespaceViewKeepsCrossNamespaceNeighbors(t *testing.T) {
	svc, st := newDemoService(t)

	// A web RoleBinding granting a service account that lives elsewhere.
	st.Apply(store.Delta{Added: []model.ResourceRecord{
		{Identity: model.Identity{Kind: "ServiceAccount", Namespace: "ops", Name: "deployer"}},
		{Identity: model.Identity{Kind: "ConfigMap", Namespace: "ops", Name: "unrelated"}},
		{
			Identity: model.Identity{Kind: "RoleBinding", Namespace: "web", Name: "ops-deployer"},
			Spec: map[string]any{
				"subjects": []any{
					map[string]any{"kind": "ServiceAccount", "name": "deployer", "namespace": "ops"},
				},
			},
		},
	}})

	require.Eventually(t, func() bool {
		g, err := svc.Topology(context.Background(), "web", false)
		return err == nil && g.NodeByID("ServiceAccount/ops/deployer") != nil
	}, 2*time.Second, 10*time.Millisecond,
		"out-of-namespace subject missing from the namespace view")

	g, err := svc.Topology(context.Background(), "web", false)
	require.NoError(t, err)
	var found bool
	for _, e := range g.Edges {
		if e.Source == "RoleBinding/web/ops-deployer" && e.Target == "ServiceAccount/ops/deployer" {
			found = true
		}
	}
	assert.True(t, found, "permits edge to the cross-namespace subject missing")

	// Unrelated ops resources still stay out of the web view.
	assert.Nil(t, g.NodeByID("ConfigMap/ops/unrelated"))
}

func TestService_CacheInvalidatedByDelta(t *testing.T) {
	svc, st := newDemoService(t)

	before, err := svc.Topology(context.Background(), "", false)
	require.NoError(t, err)

	st.Add(model.ResourceRecord{
		Identity: model.Identity{Kind: "ConfigMap", Namespace: "web", Name: "late-cfg"},
	})

	require.Eventually(t, func() bool {
		g, err := svc.Topology(context.Background(), "", false)
		return err == nil && len(g.Nodes) == len(before.Nodes)+1
	}, 2*time.Second, 10*time.Millisecond, "new resource never reached the served view")
}

func TestService_ResourceClosure(t *testing.T) {
	svc, _ := newDemoService(t)

	g, err := svc.Resource(context.Background(), "Pod", "web", "frontend-abc12-x1", 1)
	require.NoError(t, err)
	require.NotNil(t, g.NodeByID("Pod/web/frontend-abc12-x1"))
	assert.False(t, g.Metadata.IsComplete, "depth 1 around the pod must be bounded")

	_, err = svc.Resource(context.Background(), "Pod", "web", "nope", 0)
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestService_BlastRadius(t *testing.T) {
	svc, _ := newDemoService(t)

	analysis, err := svc.BlastRadius(context.Background(), "Deployment/web/frontend", 0)
	require.NoError(t, err)
	assert.Equal(t, "Deployment/web/frontend", analysis.FocalID)
	assert.Contains(t, analysis.AffectedNodes, "ReplicaSet/web/frontend-abc12")
	assert.True(t, analysis.DataLossRisk, "radius reaches the PVC and PV")

	_, err = svc.BlastRadius(context.Background(), "Pod/web/nope", 0)
	assert.ErrorIs(t, err, impact.ErrNodeNotFound)
}

func TestService_LayoutCoversEveryNode(t *testing.T) {
	svc, _ := newDemoService(t)

	g, err := svc.Topology(context.Background(), "", false)
	require.NoError(t, err)
	result, err := svc.Layout(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, layout.AlgorithmHierarchical, result.Algorithm)
	assert.Len(t, result.Positions, len(g.Nodes))
	for _, n := range g.Nodes {
		_, ok := result.Positions[n.ID]
		assert.True(t, ok, "no position for %s", n.ID)
	}
}

func TestService_ExportJSON(t *testing.T) {
	svc, _ := newDemoService(t)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), &buf, "", export.FormatJSON)
	require.NoError(t, err)

	var doc export.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.NotNil(t, doc.Graph)
	assert.NotNil(t, doc.Layout)
	assert.Len(t, doc.Layout.Positions, len(doc.Graph.Nodes))
}

func TestService_SubscribeReturnsSnapshot(t *testing.T) {
	svc, _ := newDemoService(t)

	snapshot, err := svc.Subscribe(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.Nodes)
}
