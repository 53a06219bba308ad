// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"sort"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

const (
	rowGap = 140.0
	colGap = 180.0
)

// hierarchyTypes are the relationship types that define parent-child rank
// for the hierarchical arrangement. Other edge types do not affect rank.
var hierarchyTypes = map[model.RelationshipType]bool{
	model.RelContains: true,
	model.RelOwns:     true,
	model.RelSelects:  true,
}

// hierarchicalPositions ranks nodes by their depth in the containment and
// ownership forest and lays each rank out as a row. Everything is keyed
// on sorted node ids, so the arrangement depends only on graph content.
func hierarchicalPositions(g *model.TopologyGraph) map[string]model.Position {
	ids := g.SortedNodeIDs()

	children := make(map[string][]string, len(ids))
	indegree := make(map[string]int, len(ids))
	for _, e := range g.Edges {
		if !hierarchyTypes[e.RelationshipType] {
			continue
		}
		children[e.Source] = append(children[e.Source], e.Target)
		indegree[e.Target]++
	}

	// Longest-path layering via Kahn's algorithm: a node with several
	// parents sits one row below its deepest parent, so an owned pod
	// never floats above its owner just because a selector also reaches
	// it.
	rank := make(map[string]int, len(ids))
	var frontier []string
	for _, id := range ids {
		if indegree[id] == 0 {
			rank[id] = 0
			frontier = append(frontier, id)
		}
	}
	for len(frontier) > 0 {
		sort.Strings(frontier)
		id := frontier[0]
		frontier = frontier[1:]
		for _, kid := range children[id] {
			if rank[id]+1 > rank[kid] {
				rank[kid] = rank[id] + 1
			}
			indegree[kid]--
			if indegree[kid] == 0 {
				frontier = append(frontier, kid)
			}
		}
	}
	// Hierarchy cycles leave nodes with residual indegree; park them
	// below the layered part.
	maxRank := 0
	for _, r := range rank {
		if r > maxRank {
			maxRank = r
		}
	}
	for _, id := range ids {
		if indegree[id] > 0 {
			rank[id] = maxRank + 1
		}
	}

	rows := map[int][]string{}
	for _, id := range ids {
		rows[rank[id]] = append(rows[rank[id]], id)
	}

	positions := make(map[string]model.Position, len(ids))
	for r, row := range rows {
		sort.Strings(row)
		offset := float64(len(row)-1) / 2
		for i, id := range row {
			positions[id] = model.Position{
				X: (float64(i) - offset) * colGap,
				Y: float64(r) * rowGap,
			}
		}
	}
	return positions
}
