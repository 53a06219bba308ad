// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"time"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// LoadDemoFixture populates the store with a small but relationship-rich
// cluster used by `atlas serve --demo` and by integration tests.
func LoadDemoFixture(s *MemoryStore) {
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	ns := func(name string) model.ResourceRecord {
		return model.ResourceRecord{
			Identity:  model.Identity{Kind: "Namespace", Name: name},
			CreatedAt: created,
			Status:    map[string]any{"phase": "Active"},
		}
	}

	recs := []model.ResourceRecord{
		ns("web"),
		{
			Identity:   model.Identity{Kind: "Deployment", Namespace: "web", Name: "frontend"},
			APIVersion: "apps/v1",
			UID:        "dep-frontend",
			Labels:     map[string]string{"app": "frontend", "app.kubernetes.io/managed-by": "Helm", "app.kubernetes.io/instance": "shop"},
			CreatedAt:  created,
			Spec:       map[string]any{"replicas": float64(2)},
			Status:     map[string]any{"replicas": float64(2), "readyReplicas": float64(2)},
		},
		{
			Identity:        model.Identity{Kind: "ReplicaSet", Namespace: "web", Name: "frontend-abc12"},
			APIVersion:      "apps/v1",
			UID:             "rs-frontend",
			Labels:          map[string]string{"app": "frontend"},
			OwnerReferences: []model.OwnerReference{{Kind: "Deployment", Name: "frontend", UID: "dep-frontend"}},
			CreatedAt:       created,
			Status:          map[string]any{"replicas": float64(2), "readyReplicas": float64(2)},
		},
		{
			Identity:        model.Identity{Kind: "Pod", Namespace: "web", Name: "frontend-abc12-x1"},
			APIVersion:      "v1",
			UID:             "pod-x1",
			Labels:          map[string]string{"app": "frontend"},
			OwnerReferences: []model.OwnerReference{{Kind: "ReplicaSet", Name: "frontend-abc12", UID: "rs-frontend"}},
			CreatedAt:       created,
			Spec: map[string]any{
				"nodeName":           "worker-1",
				"serviceAccountName": "frontend-sa",
				"volumes": []any{
					map[string]any{"name": "cfg", "configMap": map[string]any{"name": "frontend-cfg"}},
					map[string]any{"name": "tls", "secret": map[string]any{"secretName": "frontend-tls"}},
					map[string]any{"name": "data", "persistentVolumeClaim": map[string]any{"claimName": "frontend-data"}},
				},
				"containers": []any{
					map[string]any{
						"name": "web",
						"envFrom": []any{
							map[string]any{"configMapRef": map[string]any{"name": "frontend-cfg"}},
						},
					},
				},
			},
			Status: map[string]any{"phase": "Running"},
		},
		{
			Identity:   model.Identity{Kind: "Service", Namespace: "web", Name: "frontend"},
			APIVersion: "v1",
			CreatedAt:  created,
			Spec:       map[string]any{"selector": map[string]any{"app": "frontend"}},
		},
		{
			Identity:   model.Identity{Kind: "Endpoints", Namespace: "web", Name: "frontend"},
			APIVersion: "v1",
			CreatedAt:  created,
		},
		{
			Identity:   model.Identity{Kind: "Ingress", Namespace: "web", Name: "shop"},
			APIVersion: "networking.k8s.io/v1",
			CreatedAt:  created,
			Spec: map[string]any{
				"rules": []any{
					map[string]any{
						"http": map[string]any{
							"paths": []any{
								map[string]any{"backend": map[string]any{"service": map[string]any{"name": "frontend"}}},
							},
						},
					},
				},
			},
		},
		{
			Identity:   model.Identity{Kind: "ConfigMap", Namespace: "web", Name: "frontend-cfg"},
			APIVersion: "v1",
			CreatedAt:  created,
		},
		{
			Identity:   model.Identity{Kind: "Secret", Namespace: "web", Name: "frontend-tls"},
			APIVersion: "v1",
			CreatedAt:  created,
		},
		{
			Identity:   model.Identity{Kind: "PersistentVolumeClaim", Namespace: "web", Name: "frontend-data"},
			APIVersion: "v1",
			CreatedAt:  created,
			Spec:       map[string]any{"volumeName": "pv-0001", "storageClassName": "standard"},
			Status:     map[string]any{"phase": "Bound"},
		},
		{
			Identity:   model.Identity{Kind: "PersistentVolume", Name: "pv-0001"},
			APIVersion: "v1",
			CreatedAt:  created,
			Status:     map[string]any{"phase": "Bound"},
		},
		{
			Identity:   model.Identity{Kind: "StorageClass", Name: "standard"},
			APIVersion: "storage.k8s.io/v1",
			CreatedAt:  created,
		},
		{
			Identity:   model.Identity{Kind: "ServiceAccount", Namespace: "web", Name: "frontend-sa"},
			APIVersion: "v1",
			CreatedAt:  created,
		},
		{
			Identity:   model.Identity{Kind: "Role", Namespace: "web", Name: "frontend-role"},
			APIVersion: "rbac.authorization.k8s.io/v1",
			CreatedAt:  created,
		},
		{
			Identity:   model.Identity{Kind: "RoleBinding", Namespace: "web", Name: "frontend-rb"},
			APIVersion: "rbac.authorization.k8s.io/v1",
			CreatedAt:  created,
			Spec: map[string]any{
				"roleRef": map[string]any{"kind": "Role", "name": "frontend-role"},
				"subjects": []any{
					map[string]any{"kind": "ServiceAccount", "name": "frontend-sa", "namespace": "web"},
				},
			},
		},
		{
			Identity:   model.Identity{Kind: "HorizontalPodAutoscaler", Namespace: "web", Name: "frontend-hpa"},
			APIVersion: "autoscaling/v2",
			CreatedAt:  created,
			Spec: map[string]any{
				"scaleTargetRef": map[string]any{"kind": "Deployment", "name": "frontend"},
			},
		},
		{
			Identity:   model.Identity{Kind: "ResourceQuota", Namespace: "web", Name: "web-quota"},
			APIVersion: "v1",
			CreatedAt:  created,
		},
		{
			Identity:   model.Identity{Kind: "Node", Name: "worker-1"},
			APIVersion: "v1",
			CreatedAt:  created,
			Status: map[string]any{
				"conditions": []any{map[string]any{"type": "Ready", "status": "True"}},
			},
		},
		{
			Identity:   model.Identity{Kind: "Application", Namespace: "web", Name: "shop"},
			APIVersion: "argoproj.io/v1alpha1",
			CreatedAt:  created,
		},
	}

	s.Apply(Delta{Added: recs})
}
