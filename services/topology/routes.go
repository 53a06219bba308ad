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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all topology routes with the router.
//
// Description:
//
//	Registers all /v1/topology/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Graph Endpoints:
//
//	GET  /v1/topology - Current graph, optionally one namespace view
//	GET  /v1/topology/resource/:kind/:namespace/:name - Closure around a resource
//	GET  /v1/topology/layout - Deterministic node positions
//	GET  /v1/topology/blastradius/*id - Impact analysis for a node
//	POST /v1/topology/export - Render the graph as json, svg, or drawio
//	GET  /v1/topology/stream - Websocket snapshot + delta stream
//
// Health Endpoints:
//
//	GET  /v1/topology/health - Health check
//	GET  /v1/topology/ready - Readiness check
//
// Example:
//
//	service, _ := topology.NewService(topology.DefaultConfig("demo"), store)
//	handlers := topology.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	topology.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	topo := rg.Group("/topology")
	topo.Use(requestIDMiddleware())
	{
		// Graph queries
		topo.GET("", handlers.HandleTopology)
		topo.GET("/resource/:kind/:namespace/:name", handlers.HandleResource)
		topo.GET("/layout", handlers.HandleLayout)
		topo.GET("/blastradius/*id", handlers.HandleBlastRadius)

		// Export and streaming
		topo.POST("/export", handlers.HandleExport)
		topo.GET("/stream", handlers.HandleStream)

		// Health checks
		topo.GET("/health", handlers.HandleHealth)
		topo.GET("/ready", handlers.HandleReady)
	}
}

// requestIDMiddleware echoes or mints an X-Request-ID for correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("request_id", getOrCreateRequestID(c))
		c.Next()
	}
}
