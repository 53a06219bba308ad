// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
	"github.com/AleutianAI/AleutianAtlas/services/topology/store"
)

func demoRecords(t *testing.T) []model.ResourceRecord {
	t.Helper()
	s := store.NewMemoryStore()
	defer s.Close()
	store.LoadDemoFixture(s)
	recs, err := s.List(context.Background())
	require.NoError(t, err)
	return recs
}

func edgeSet(edges []model.Edge) map[string]model.Edge {
	m := make(map[string]model.Edge, len(edges))
	for _, e := range edges {
		m[e.Key()] = e
	}
	return m
}

func TestCatalog_OneRulePerType(t *testing.T) {
	seen := map[model.RelationshipType]string{}
	for _, r := range Catalog() {
		prev, dup := seen[r.Type()]
		require.False(t, dup, "types %s and %s both produce %s", prev, r.Name(), r.Type())
		seen[r.Type()] = r.Name()
	}
	assert.Len(t, seen, len(model.RelationshipTypes))
}

func TestInferAll_DemoFixtureEdges(t *testing.T) {
	edges, _ := NewEngine().InferAll(demoRecords(t))
	byKey := edgeSet(edges)

	want := []string{
		"Deployment/web/frontend->ReplicaSet/web/frontend-abc12:owns",
		"ReplicaSet/web/frontend-abc12->Pod/web/frontend-abc12-x1:owns",
		"Service/web/frontend->Pod/web/frontend-abc12-x1:selects",
		"Pod/web/frontend-abc12-x1->ConfigMap/web/frontend-cfg:mounts",
		"Pod/web/frontend-abc12-x1->Secret/web/frontend-tls:mounts",
		"Pod/web/frontend-abc12-x1->PersistentVolumeClaim/web/frontend-data:stores",
		"PersistentVolumeClaim/web/frontend-data->PersistentVolume/pv-0001:stores",
		"PersistentVolumeClaim/web/frontend-data->StorageClass/standard:references",
		"HorizontalPodAutoscaler/web/frontend-hpa->Deployment/web/frontend:references",
		"Pod/web/frontend-abc12-x1->ServiceAccount/web/frontend-sa:references",
		"Node/worker-1->Pod/web/frontend-abc12-x1:schedules",
		"ConfigMap/web/frontend-cfg->Pod/web/frontend-abc12-x1:configures",
		"RoleBinding/web/frontend-rb->Role/web/frontend-role:permits",
		"RoleBinding/web/frontend-rb->ServiceAccount/web/frontend-sa:permits",
		"Service/web/frontend->Endpoints/web/frontend:exposes",
		"Ingress/web/shop->Service/web/frontend:routes",
		"ResourceQuota/web/web-quota->Namespace/web:limits",
		"Application/web/shop->Deployment/web/frontend:manages",
		"Namespace/web->Deployment/web/frontend:contains",
	}
	for _, key := range want {
		_, ok := byKey[key]
		assert.True(t, ok, "missing edge %s", key)
	}
}

func TestInferAll_EdgeMetadataIsExplainable(t *testing.T) {
	edges, _ := NewEngine().InferAll(demoRecords(t))
	for _, e := range edges {
		assert.NotEmpty(t, e.Metadata.Derivation, "edge %s has no derivation", e.Key())
		assert.Greater(t, e.Metadata.Confidence, 0.0, "edge %s has no confidence", e.Key())
		assert.NotEmpty(t, e.Metadata.SourceField, "edge %s has no source field", e.Key())
		assert.Equal(t, model.EdgeID(e.Source, e.Target, e.RelationshipType), e.ID)
	}
}

func TestInferAll_OrderIndependentAndIdempotent(t *testing.T) {
	recs := demoRecords(t)
	engine := NewEngine()

	first, _ := engine.InferAll(recs)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]model.ResourceRecord, len(recs))
		copy(shuffled, recs)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		again, _ := engine.InferAll(shuffled)
		assert.Equal(t, first, again, "inference must be independent of record order")
	}
}

func TestInferAll_DropsCandidatesWithMissingEndpoints(t *testing.T) {
	recs := []model.ResourceRecord{
		{
			Identity:        model.Identity{Kind: "Pod", Namespace: "web", Name: "orphan"},
			OwnerReferences: []model.OwnerReference{{Kind: "ReplicaSet", Name: "gone", UID: "rs-gone"}},
		},
	}
	edges, warnings := NewEngine().InferAll(recs)
	assert.Empty(t, edges)

	var found bool
	for _, w := range warnings {
		if w.Code == model.WarnOrphanedResource {
			found = true
			assert.Contains(t, w.AffectedNodes, "Pod/web/orphan")
		}
	}
	assert.True(t, found, "expected an orphaned resource warning")
}

func TestOwnsRule_ResolvesByUIDFirst(t *testing.T) {
	// Two same-named owners in different namespaces; the UID picks the
	// right one even though the name alone is ambiguous.
	recs := []model.ResourceRecord{
		{Identity: model.Identity{Kind: "ReplicaSet", Namespace: "a", Name: "rs"}, UID: "uid-a"},
		{Identity: model.Identity{Kind: "ReplicaSet", Namespace: "b", Name: "rs"}, UID: "uid-b"},
		{
			Identity:        model.Identity{Kind: "Pod", Namespace: "a", Name: "p"},
			OwnerReferences: []model.OwnerReference{{Kind: "ReplicaSet", Name: "rs", UID: "uid-b"}},
		},
	}
	edges, _ := NewEngineWithRules([]Rule{ownsRule{}}).InferAll(recs)
	require.Len(t, edges, 1)
	assert.Equal(t, "ReplicaSet/b/rs", edges[0].Source)
}

func TestSelectsRule_MalformedSelectorWarns(t *testing.T) {
	recs := []model.ResourceRecord{
		{
			Identity: model.Identity{Kind: "Service", Namespace: "web", Name: "bad"},
			Spec:     map[string]any{"selector": "app==)("},
		},
		{
			Identity: model.Identity{Kind: "Pod", Namespace: "web", Name: "p"},
			Labels:   map[string]string{"app": "web"},
		},
	}
	edges, warnings := NewEngineWithRules([]Rule{selectsRule{}}).InferAll(recs)
	assert.Empty(t, edges)
	require.NotEmpty(t, warnings)
	assert.Equal(t, model.WarnRuleSkipped, warnings[0].Code)
	assert.Contains(t, warnings[0].AffectedNodes, "Service/web/bad")
}

func TestSelectsRule_CrossNamespaceMatchIsAmbiguous(t *testing.T) {
	// A cluster-scoped selecting object matching pods in two namespaces
	// keeps its edges at reduced confidence plus a warning.
	recs := []model.ResourceRecord{
		{
			Identity: model.Identity{Kind: "Service", Name: "global"},
			Spec:     map[string]any{"selector": map[string]any{"app": "web"}},
		},
		{Identity: model.Identity{Kind: "Pod", Namespace: "a", Name: "p1"}, Labels: map[string]string{"app": "web"}},
		{Identity: model.Identity{Kind: "Pod", Namespace: "b", Name: "p2"}, Labels: map[string]string{"app": "web"}},
	}
	edges, warnings := NewEngineWithRules([]Rule{selectsRule{}}).InferAll(recs)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, ConfidenceAmbiguous, e.Metadata.Confidence)
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnAmbiguousSelector, warnings[0].Code)
}

func TestSelectsRule_NamespaceScoped(t *testing.T) {
	recs := []model.ResourceRecord{
		{
			Identity: model.Identity{Kind: "Service", Namespace: "a", Name: "svc"},
			Spec:     map[string]any{"selector": map[string]any{"app": "web"}},
		},
		{Identity: model.Identity{Kind: "Pod", Namespace: "a", Name: "p1"}, Labels: map[string]string{"app": "web"}},
		{Identity: model.Identity{Kind: "Pod", Namespace: "b", Name: "p2"}, Labels: map[string]string{"app": "web"}},
	}
	edges, warnings := NewEngineWithRules([]Rule{selectsRule{}}).InferAll(recs)
	require.Len(t, edges, 1)
	assert.Equal(t, "Pod/a/p1", edges[0].Target)
	assert.Equal(t, ConfidenceSelector, edges[0].Metadata.Confidence)
	assert.Empty(t, warnings)
}

func TestInferAll_DedupKeepsHigherConfidence(t *testing.T) {
	// The same pod mounts the same config map twice through two volumes;
	// only one mounts edge survives.
	recs := []model.ResourceRecord{
		{Identity: model.Identity{Kind: "ConfigMap", Namespace: "web", Name: "cfg"}},
		{
			Identity: model.Identity{Kind: "Pod", Namespace: "web", Name: "p"},
			Spec: map[string]any{
				"volumes": []any{
					map[string]any{"name": "v1", "configMap": map[string]any{"name": "cfg"}},
					map[string]any{"name": "v2", "configMap": map[string]any{"name": "cfg"}},
				},
			},
		},
	}
	edges, _ := NewEngineWithRules([]Rule{mountsRule{}}).InferAll(recs)
	require.Len(t, edges, 1)
}

func TestManagesRule_AmbiguousManagerLowersConfidence(t *testing.T) {
	recs := []model.ResourceRecord{
		{Identity: model.Identity{Kind: "Application", Namespace: "web", Name: "shop"}},
		{Identity: model.Identity{Kind: "HelmRelease", Namespace: "web", Name: "shop"}},
		{
			Identity: model.Identity{Kind: "Deployment", Namespace: "web", Name: "frontend"},
			Labels: map[string]string{
				managedByLabel: "Helm",
				instanceLabel:  "shop",
			},
		},
	}
	edges, warnings := NewEngineWithRules([]Rule{managesRule{}}).InferAll(recs)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, ConfidenceAmbiguous, e.Metadata.Confidence)
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnAmbiguousSelector, warnings[0].Code)
}

func TestWebhookRules_LinkToBackingService(t *testing.T) {
	hook := map[string]any{
		"webhooks": []any{
			map[string]any{
				"clientConfig": map[string]any{
					"service": map[string]any{"name": "admit", "namespace": "kube-system"},
				},
			},
		},
	}
	recs := []model.ResourceRecord{
		{Identity: model.Identity{Kind: "Service", Namespace: "kube-system", Name: "admit"}},
		{Identity: model.Identity{Kind: "ValidatingWebhookConfiguration", Name: "vwc"}, Spec: hook},
		{Identity: model.Identity{Kind: "MutatingWebhookConfiguration", Name: "mwc"}, Spec: hook},
	}
	edges, _ := NewEngine().InferAll(recs)
	byKey := edgeSet(edges)
	assert.Contains(t, byKey, "ValidatingWebhookConfiguration/vwc->Service/kube-system/admit:validates")
	assert.Contains(t, byKey, "MutatingWebhookConfiguration/mwc->Service/kube-system/admit:mutates")
}

func TestRuleSkip_MalformedFieldDoesNotAbortPass(t *testing.T) {
	recs := []model.ResourceRecord{
		{Identity: model.Identity{Kind: "Namespace", Name: "web"}},
		{
			// volumes is the wrong shape entirely
			Identity: model.Identity{Kind: "Pod", Namespace: "web", Name: "broken"},
			Spec:     map[string]any{"volumes": "not-a-list"},
		},
		{Identity: model.Identity{Kind: "Pod", Namespace: "web", Name: "fine"}},
	}
	edges, warnings := NewEngine().InferAll(recs)

	var skipped bool
	for _, w := range warnings {
		if w.Code == model.WarnRuleSkipped {
			skipped = true
		}
	}
	assert.True(t, skipped, "malformed volumes must produce a skip warning")

	// Other rules still ran: both pods get contains edges.
	byKey := edgeSet(edges)
	assert.Contains(t, byKey, "Namespace/web->Pod/web/broken:contains")
	assert.Contains(t, byKey, "Namespace/web->Pod/web/fine:contains")
}
