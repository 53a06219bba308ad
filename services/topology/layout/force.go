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
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

const (
	forceArea        = 1000.0
	minimumDistance  = 0.01
	deadlineInterval = 16 // iterations between deadline checks
)

// forcePositions runs a Fruchterman-Reingold style simulation. Initial
// positions derive from hashing each node id with the seed, node order is
// the sorted id order, and the iteration count is fixed, so the full run
// is reproducible. A deadline cuts the simulation short and marks the
// result approximate.
func forcePositions(g *model.TopologyGraph, seed uint64, iterations int, deadline time.Time) (map[string]model.Position, bool) {
	ids := g.SortedNodeIDs()
	n := len(ids)
	if n == 0 {
		return map[string]model.Position{}, false
	}

	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, id := range ids {
		h := xxhash.Sum64String(fmt.Sprintf("%s:%016x", id, seed))
		xs[i] = float64(h%100000)/100000*forceArea - forceArea/2
		ys[i] = float64((h>>20)%100000)/100000*forceArea - forceArea/2
	}

	type pair struct{ a, b int }
	edges := make([]model.Edge, len(g.Edges))
	copy(edges, g.Edges)
	sort.Slice(edges, func(i, j int) bool { return edges[i].Key() < edges[j].Key() })
	links := make([]pair, 0, len(edges))
	for _, e := range edges {
		ai, aok := index[e.Source]
		bi, bok := index[e.Target]
		if aok && bok {
			links = append(links, pair{ai, bi})
		}
	}

	k := math.Sqrt(forceArea * forceArea / float64(n))
	temperature := forceArea / 10

	dx := make([]float64, n)
	dy := make([]float64, n)
	approximate := false

	for iter := 0; iter < iterations; iter++ {
		if !deadline.IsZero() && iter%deadlineInterval == 0 && time.Now().After(deadline) {
			approximate = true
			break
		}
		for i := range dx {
			dx[i], dy[i] = 0, 0
		}

		// Repulsion between every pair.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				ddx := xs[i] - xs[j]
				ddy := ys[i] - ys[j]
				dist := math.Hypot(ddx, ddy)
				if dist < minimumDistance {
					dist = minimumDistance
					ddx = minimumDistance
				}
				force := k * k / dist
				dx[i] += ddx / dist * force
				dy[i] += ddy / dist * force
				dx[j] -= ddx / dist * force
				dy[j] -= ddy / dist * force
			}
		}
		// Attraction along edges.
		for _, l := range links {
			ddx := xs[l.a] - xs[l.b]
			ddy := ys[l.a] - ys[l.b]
			dist := math.Hypot(ddx, ddy)
			if dist < minimumDistance {
				dist = minimumDistance
			}
			force := dist * dist / k
			dx[l.a] -= ddx / dist * force
			dy[l.a] -= ddy / dist * force
			dx[l.b] += ddx / dist * force
			dy[l.b] += ddy / dist * force
		}
		// Displace, clamped by temperature.
		for i := 0; i < n; i++ {
			disp := math.Hypot(dx[i], dy[i])
			if disp < minimumDistance {
				continue
			}
			limited := math.Min(disp, temperature)
			xs[i] += dx[i] / disp * limited
			ys[i] += dy[i] / disp * limited
		}
		temperature *= 0.97
	}

	positions := make(map[string]model.Position, n)
	for i, id := range ids {
		positions[id] = model.Position{X: xs[i], Y: ys[i]}
	}
	return positions, approximate
}
