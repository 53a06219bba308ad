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

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// DeriveLayoutSeed computes the layout seed from graph content alone:
// the hash of sorted node ids combined with the hash of sorted edge
// triple keys. Two graphs with identical content derive identical seeds
// regardless of construction order or process restarts.
func DeriveLayoutSeed(g *TopologyGraph) string {
	return fmt.Sprintf("%016x", layoutSeedValue(g))
}

// LayoutSeedValue returns the seed as a raw uint64 for use as an RNG
// source.
func LayoutSeedValue(g *TopologyGraph) uint64 {
	return layoutSeedValue(g)
}

func layoutSeedValue(g *TopologyGraph) uint64 {
	var nodeHash xxhash.Digest
	for _, id := range g.SortedNodeIDs() {
		_, _ = nodeHash.WriteString(id)
		_, _ = nodeHash.WriteString("\n")
	}
	var edgeHash xxhash.Digest
	for _, key := range g.SortedEdgeKeys() {
		_, _ = edgeHash.WriteString(key)
		_, _ = edgeHash.WriteString("\n")
	}
	return nodeHash.Sum64() ^ edgeHash.Sum64()
}

// ContentHash fingerprints the graph structure for layout caching. It
// covers the same content as the layout seed but keeps the node and edge
// streams in one digest so hash and seed stay independent values.
func ContentHash(g *TopologyGraph) string {
	var d xxhash.Digest
	for _, id := range g.SortedNodeIDs() {
		_, _ = d.WriteString("n:")
		_, _ = d.WriteString(id)
		_, _ = d.WriteString("\n")
	}
	for _, key := range g.SortedEdgeKeys() {
		_, _ = d.WriteString("e:")
		_, _ = d.WriteString(key)
		_, _ = d.WriteString("\n")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
