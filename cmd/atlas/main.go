// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command atlas starts the Atlas topology API server.
//
// Atlas watches cluster resources and serves their relationship graph:
//   - Inferred typed edges with confidence and provenance
//   - Deterministic layouts (same cluster state, same picture)
//   - Blast-radius analysis for change planning
//   - JSON, SVG, and draw.io exports
//   - Websocket delta streaming
//
// Usage:
//
//	atlas serve --config atlas.yaml
//	atlas serve --demo --port 9090
//	atlas version
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/topology/health
//
//	# Full graph
//	curl http://localhost:8080/v1/topology | jq
//
//	# Blast radius of a deployment
//	curl http://localhost:8080/v1/topology/blastradius/Deployment/web/frontend | jq
//
//	# SVG export
//	curl -X POST http://localhost:8080/v1/topology/export \
//	  -H "Content-Type: application/json" \
//	  -d '{"format": "svg"}' > topology.svg
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
