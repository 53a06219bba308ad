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
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianAtlas/services/topology/export"
	"github.com/AleutianAI/AleutianAtlas/services/topology/graph"
	"github.com/AleutianAI/AleutianAtlas/services/topology/impact"
)

// ServiceVersion is the topology service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the topology service.
type Handlers struct {
	svc      *Service
	upgrader websocket.Upgrader
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// HandleTopology handles GET /v1/topology.
//
// Query Parameters:
//
//	namespace - Optional. Restrict the view to one namespace.
//	force_refresh - Optional. "true" bypasses the view cache.
//
// Response:
//
//	200 OK: model.TopologyGraph
//	503 Service Unavailable: No snapshot published yet
func (h *Handlers) HandleTopology(c *gin.Context) {
	namespace := c.Query("namespace")
	force := c.Query("force_refresh") == "true"

	g, err := h.svc.Topology(c.Request.Context(), namespace, force)
	if err != nil {
		h.writeError(c, "topology", err)
		return
	}
	h.countRequest("topology", http.StatusOK)
	c.JSON(http.StatusOK, g)
}

// HandleResource handles GET /v1/topology/resource/:kind/:namespace/:name.
//
// Cluster-scoped kinds use "-" as the namespace segment.
//
// Query Parameters:
//
//	depth - Optional. Maximum traversal depth; 0 or absent means unbounded.
//
// Response:
//
//	200 OK: model.TopologyGraph closure around the resource
//	404 Not Found: Unknown resource
//	503 Service Unavailable: No snapshot published yet
func (h *Handlers) HandleResource(c *gin.Context) {
	kind := c.Param("kind")
	namespace := c.Param("namespace")
	if namespace == "-" {
		namespace = ""
	}
	name := c.Param("name")

	depth := 0
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.countRequest("resource", http.StatusBadRequest)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "depth must be a non-negative integer",
				Code:  "INVALID_DEPTH",
			})
			return
		}
		depth = parsed
	}

	g, err := h.svc.Resource(c.Request.Context(), kind, namespace, name, depth)
	if err != nil {
		h.writeError(c, "resource", err)
		return
	}
	h.countRequest("resource", http.StatusOK)
	c.JSON(http.StatusOK, g)
}

// HandleLayout handles GET /v1/topology/layout.
//
// Query Parameters:
//
//	namespace - Optional. Layout of the namespace view instead of the
//	full graph.
//	seed - Optional. Expected layout seed; a mismatch with the seed
//	derived from current graph content is a 400, signalling the client
//	holds a stale graph.
//
// Response:
//
//	200 OK: layout.Result
//	400 Bad Request: Seed mismatch
//	503 Service Unavailable: No snapshot published yet
func (h *Handlers) HandleLayout(c *gin.Context) {
	result, err := h.svc.Layout(c.Request.Context(), c.Query("namespace"))
	if err != nil {
		h.writeError(c, "layout", err)
		return
	}
	if want := c.Query("seed"); want != "" && want != result.Seed {
		h.countRequest("layout", http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "seed does not match current graph content",
			Code:  "SEED_MISMATCH",
		})
		return
	}
	h.countRequest("layout", http.StatusOK)
	c.JSON(http.StatusOK, result)
}

// HandleBlastRadius handles GET /v1/topology/blastradius/*id.
//
// The wildcard carries the full node id, which itself contains slashes
// ("Deployment/prod/api").
//
// Query Parameters:
//
//	max_hops - Optional. Bound the analysis; 0 or absent means unbounded.
//
// Response:
//
//	200 OK: impact.Analysis
//	404 Not Found: Unknown focal node
//	503 Service Unavailable: No snapshot published yet
func (h *Handlers) HandleBlastRadius(c *gin.Context) {
	focalID := strings.TrimPrefix(c.Param("id"), "/")
	if focalID == "" {
		h.countRequest("blastradius", http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "focal node id is required",
			Code:  "MISSING_NODE_ID",
		})
		return
	}

	maxHops := 0
	if raw := c.Query("max_hops"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.countRequest("blastradius", http.StatusBadRequest)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "max_hops must be a non-negative integer",
				Code:  "INVALID_MAX_HOPS",
			})
			return
		}
		maxHops = parsed
	}

	analysis, err := h.svc.BlastRadius(c.Request.Context(), focalID, maxHops)
	if err != nil {
		h.writeError(c, "blastradius", err)
		return
	}
	h.countRequest("blastradius", http.StatusOK)
	c.JSON(http.StatusOK, analysis)
}

// HandleExport handles POST /v1/topology/export.
//
// Request Body:
//
//	ExportRequest
//
// Response:
//
//	200 OK: The rendered document; Content-Type follows the format
//	400 Bad Request: Unknown format
//	503 Service Unavailable: No snapshot published yet
func (h *Handlers) HandleExport(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.countRequest("export", http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		h.countRequest("export", http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "UNSUPPORTED_FORMAT",
		})
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Status(http.StatusOK)
	if err := h.svc.Export(c.Request.Context(), c.Writer, req.Namespace, format); err != nil {
		// Headers are out; all we can do is abort the stream.
		h.countRequest("export", http.StatusInternalServerError)
		c.Abort()
		return
	}
	h.countRequest("export", http.StatusOK)
}

// HandleStream handles GET /v1/topology/stream.
//
// Upgrades to a websocket, sends one snapshot event, then streams delta
// events until the client disconnects.
func (h *Handlers) HandleStream(c *gin.Context) {
	snapshot, err := h.svc.Subscribe(c.Request.Context())
	if err != nil {
		h.writeError(c, "stream", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.countRequest("stream", http.StatusBadRequest)
		return
	}
	h.countRequest("stream", http.StatusSwitchingProtocols)
	h.svc.StreamHub().Serve(conn, StreamEvent{
		Type:     StreamEventSnapshot,
		Snapshot: snapshot,
	})
}

// HandleHealth handles GET /v1/topology/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleReady handles GET /v1/topology/ready.
//
// Response:
//
//	200 OK: ReadyResponse with current graph counts
//	503 Service Unavailable: No snapshot published yet
func (h *Handlers) HandleReady(c *gin.Context) {
	if !h.svc.Ready() {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}
	nodes, edges, err := h.svc.Stats()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{Ready: true, Nodes: nodes, Edges: edges})
}

// writeError maps service errors onto HTTP status codes.
func (h *Handlers) writeError(c *gin.Context, endpoint string, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	switch {
	case errors.Is(err, ErrNotReady), errors.Is(err, graph.ErrGraphUnavailable):
		status = http.StatusServiceUnavailable
		code = "NOT_READY"
	case errors.Is(err, ErrStopped), errors.Is(err, graph.ErrClosed):
		status = http.StatusServiceUnavailable
		code = "STOPPED"
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, impact.ErrNodeNotFound):
		status = http.StatusNotFound
		code = "NODE_NOT_FOUND"
	case errors.Is(err, export.ErrUnsupportedFormat):
		status = http.StatusBadRequest
		code = "UNSUPPORTED_FORMAT"
	}

	h.countRequest(endpoint, status)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func (h *Handlers) countRequest(endpoint string, status int) {
	if h.svc.metrics == nil {
		return
	}
	class := strconv.Itoa(status/100) + "xx"
	h.svc.metrics.RequestsTotal.WithLabelValues(endpoint, class).Inc()
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
