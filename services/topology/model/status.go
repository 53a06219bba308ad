// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "strings"

// ResolveStatus maps a record's opaque status document onto the closed
// NodeStatus set. Resolution order: explicit phase, replica readiness,
// Ready condition, unknown.
func ResolveStatus(rec ResourceRecord) NodeStatus {
	if rec.Status == nil {
		return StatusUnknown
	}

	if phase, ok := rec.Status["phase"].(string); ok {
		switch strings.ToLower(phase) {
		case "running", "succeeded", "active", "bound", "available":
			return StatusHealthy
		case "pending", "released", "terminating":
			return StatusWarning
		case "failed", "lost", "unknown", "crashloopbackoff", "evicted":
			return StatusCritical
		}
	}

	desired, hasDesired := asInt(rec.Status["replicas"])
	ready, hasReady := asInt(rec.Status["readyReplicas"])
	if hasDesired && desired > 0 {
		if !hasReady {
			ready = 0
		}
		switch {
		case ready >= desired:
			return StatusHealthy
		case ready == 0:
			return StatusCritical
		default:
			return StatusWarning
		}
	}
	if hasDesired && desired == 0 {
		// Scaled to zero on purpose; not a failure.
		return StatusHealthy
	}

	if conds, ok := rec.Status["conditions"].([]any); ok {
		for _, c := range conds {
			cond, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := cond["type"].(string); t != "Ready" {
				continue
			}
			switch s, _ := cond["status"].(string); s {
			case "True":
				return StatusHealthy
			case "False":
				return StatusCritical
			default:
				return StatusUnknown
			}
		}
	}

	return StatusUnknown
}

// asInt coerces the numeric shapes json decoding produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// NodeFromRecord builds the graph node for a record. The node id derives
// deterministically from the record identity.
func NodeFromRecord(rec ResourceRecord) Node {
	return Node{
		ID:         rec.Identity.ID(),
		Kind:       rec.Kind,
		Namespace:  rec.Namespace,
		Name:       rec.Name,
		APIVersion: rec.APIVersion,
		Status:     ResolveStatus(rec),
		Metadata: NodeMetadata{
			Labels:      copyStringMap(rec.Labels),
			Annotations: copyStringMap(rec.Annotations),
			CreatedAt:   rec.CreatedAt,
			UID:         rec.UID,
		},
	}
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
