// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

func testNode(id, kind string) model.Node {
	return model.Node{ID: id, Kind: kind}
}

func testEdge(src, dst string, t model.RelationshipType) model.Edge {
	return model.Edge{
		ID: model.EdgeID(src, dst, t), Source: src, Target: dst, RelationshipType: t,
	}
}

// chainGraph wires a owns b, b selects c, d permits b, with e isolated.
func chainGraph() *model.TopologyGraph {
	return &model.TopologyGraph{
		Nodes: []model.Node{
			testNode("Deployment/web/a", "Deployment"),
			testNode("ReplicaSet/web/b", "ReplicaSet"),
			testNode("Pod/web/c", "Pod"),
			testNode("RoleBinding/web/d", "RoleBinding"),
			testNode("ConfigMap/web/e", "ConfigMap"),
		},
		Edges: []model.Edge{
			testEdge("Deployment/web/a", "ReplicaSet/web/b", model.RelOwns),
			testEdge("ReplicaSet/web/b", "Pod/web/c", model.RelSelects),
			testEdge("RoleBinding/web/d", "ReplicaSet/web/b", model.RelPermits),
		},
	}
}

func TestAnalyze_ConnectedComponentBothDirections(t *testing.T) {
	a, err := Analyze(chainGraph(), "ReplicaSet/web/b", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Deployment/web/a", "Pod/web/c", "RoleBinding/web/d"}, a.AffectedNodes,
		"upstream owner, downstream pod, and incoming binding are all affected; the isolated node is not")
	assert.Len(t, a.AffectedEdges, 3)
	assert.False(t, a.Bounded)
	assert.False(t, a.DataLossRisk)
	assert.Equal(t, SeverityLow, a.Severity)
	assert.Equal(t, map[string]int{"Deployment": 1, "Pod": 1, "RoleBinding": 1}, a.AffectedByKind)
}

func TestAnalyze_IsolatedNodeHasEmptyRadius(t *testing.T) {
	a, err := Analyze(chainGraph(), "ConfigMap/web/e", Options{})
	require.NoError(t, err)
	assert.Empty(t, a.AffectedNodes)
	assert.Empty(t, a.AffectedEdges)
	assert.Equal(t, SeverityLow, a.Severity)
}

func TestAnalyze_UnknownFocalNode(t *testing.T) {
	_, err := Analyze(chainGraph(), "Pod/web/ghost", Options{})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestAnalyze_MaxHopsBounds(t *testing.T) {
	a, err := Analyze(chainGraph(), "Deployment/web/a", Options{MaxHops: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"ReplicaSet/web/b"}, a.AffectedNodes)
	assert.True(t, a.Bounded, "one hop from a leaves b's other neighbors unexplored")

	full, err := Analyze(chainGraph(), "Deployment/web/a", Options{MaxHops: 0})
	require.NoError(t, err)
	assert.False(t, full.Bounded)
	assert.Len(t, full.AffectedNodes, 3)
}

func TestAnalyze_StatefulFocalKindIsHighSeverity(t *testing.T) {
	g := &model.TopologyGraph{
		Nodes: []model.Node{
			testNode("StatefulSet/db/pg", "StatefulSet"),
			testNode("Pod/db/pg-0", "Pod"),
		},
		Edges: []model.Edge{testEdge("StatefulSet/db/pg", "Pod/db/pg-0", model.RelOwns)},
	}
	a, err := Analyze(g, "StatefulSet/db/pg", Options{})
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.True(t, a.DataLossRisk)
}

func TestAnalyze_ReachingStorageFlagsDataLoss(t *testing.T) {
	g := &model.TopologyGraph{
		Nodes: []model.Node{
			testNode("Pod/web/p", "Pod"),
			testNode("PersistentVolumeClaim/web/data", "PersistentVolumeClaim"),
		},
		Edges: []model.Edge{testEdge("Pod/web/p", "PersistentVolumeClaim/web/data", model.RelStores)},
	}
	a, err := Analyze(g, "Pod/web/p", Options{})
	require.NoError(t, err)
	assert.True(t, a.DataLossRisk)
	assert.Equal(t, SeverityLow, a.Severity, "size-based severity is independent of data loss risk")
}

func TestAnalyze_SeverityScalesWithRadius(t *testing.T) {
	build := func(fanout int) *model.TopologyGraph {
		g := &model.TopologyGraph{Nodes: []model.Node{testNode("Service/web/hub", "Service")}}
		for i := 0; i < fanout; i++ {
			id := fmt.Sprintf("Pod/web/p-%02d", i)
			g.Nodes = append(g.Nodes, testNode(id, "Pod"))
			g.Edges = append(g.Edges, testEdge("Service/web/hub", id, model.RelSelects))
		}
		return g
	}

	small, err := Analyze(build(3), "Service/web/hub", Options{})
	require.NoError(t, err)
	assert.Equal(t, SeverityLow, small.Severity)

	medium, err := Analyze(build(10), "Service/web/hub", Options{})
	require.NoError(t, err)
	assert.Equal(t, SeverityMedium, medium.Severity)

	large, err := Analyze(build(30), "Service/web/hub", Options{})
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, large.Severity)
}
