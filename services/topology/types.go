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
	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// ExportRequest is the POST /v1/topology/export body.
type ExportRequest struct {
	// Format is one of "json", "svg", "drawio".
	Format string `json:"format" binding:"required"`

	// Namespace optionally restricts the export to one namespace view.
	Namespace string `json:"namespace"`
}

// StreamEventType distinguishes websocket payloads.
type StreamEventType string

const (
	// StreamEventSnapshot carries a full graph, sent once on connect.
	StreamEventSnapshot StreamEventType = "snapshot"

	// StreamEventDelta carries incremental node and edge churn.
	StreamEventDelta StreamEventType = "delta"
)

// StreamEvent is one websocket message to topology subscribers.
type StreamEvent struct {
	Type     StreamEventType      `json:"type"`
	Snapshot *model.TopologyGraph `json:"snapshot,omitempty"`
	Delta    *model.GraphDelta    `json:"delta,omitempty"`
}

// ErrorResponse is the uniform error body for every endpoint.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}

// HealthResponse is the GET /v1/topology/health body.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the GET /v1/topology/ready body.
type ReadyResponse struct {
	Ready bool `json:"ready"`
	Nodes int  `json:"nodes,omitempty"`
	Edges int  `json:"edges,omitempty"`
}
