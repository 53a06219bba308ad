// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package impact answers "what is affected if this resource fails". The
// blast radius of a node is everything connected to it when edge
// direction is ignored: a dependent is affected by its dependency and a
// dependency is load-bearing for its dependents.
package impact

import (
	"errors"
	"sort"

	"github.com/AleutianAI/AleutianAtlas/services/topology/graph"
	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// ErrNodeNotFound means the focal node id is not in the graph.
var ErrNodeNotFound = errors.New("impact: node not found")

// Severity classifies the operational weight of a failure.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Affected-count thresholds for severity classification.
const (
	mediumThreshold = 5
	highThreshold   = 25
)

// statefulKinds force high severity and signal data-loss risk regardless
// of blast radius size.
var statefulKinds = map[string]bool{
	"StatefulSet":           true,
	"PersistentVolume":      true,
	"PersistentVolumeClaim": true,
}

// Analysis is one blast radius result.
type Analysis struct {
	FocalID string `json:"focalId"`

	// AffectedNodes lists every reachable node id except the focal one,
	// sorted ascending.
	AffectedNodes []string `json:"affectedNodes"`

	// AffectedEdges lists the ids of edges inside the blast radius,
	// sorted ascending.
	AffectedEdges []string `json:"affectedEdges"`

	// AffectedByKind is the per-kind histogram of affected nodes.
	AffectedByKind map[string]int `json:"affectedByKind,omitempty"`

	Severity     Severity `json:"severity"`
	DataLossRisk bool     `json:"dataLossRisk"`

	// Bounded marks a traversal stopped by MaxHops before exhausting
	// the connected component. A bounded analysis understates impact.
	Bounded bool `json:"bounded,omitempty"`
}

// Options tunes one analysis.
type Options struct {
	// MaxHops bounds the traversal depth. Zero or negative means
	// unbounded, which is the default and the only mode that gives a
	// complete answer.
	MaxHops int
}

// Analyze computes the blast radius of focalID in g.
func Analyze(g *model.TopologyGraph, focalID string, opts Options) (*Analysis, error) {
	focal := g.NodeByID(focalID)
	if focal == nil {
		return nil, ErrNodeNotFound
	}

	reached, bounded := graph.Traverse(g, focalID, opts.MaxHops)

	a := &Analysis{
		FocalID:        focalID,
		AffectedNodes:  []string{},
		AffectedEdges:  []string{},
		AffectedByKind: map[string]int{},
		Bounded:        bounded,
	}

	dataLoss := statefulKinds[focal.Kind]
	for _, n := range g.Nodes {
		if n.ID == focalID || !reached[n.ID] {
			continue
		}
		a.AffectedNodes = append(a.AffectedNodes, n.ID)
		a.AffectedByKind[n.Kind]++
		if statefulKinds[n.Kind] {
			dataLoss = true
		}
	}
	sort.Strings(a.AffectedNodes)

	for _, e := range g.Edges {
		if reached[e.Source] && reached[e.Target] {
			a.AffectedEdges = append(a.AffectedEdges, e.ID)
		}
	}
	sort.Strings(a.AffectedEdges)

	a.DataLossRisk = dataLoss
	a.Severity = classify(focal.Kind, len(a.AffectedNodes))
	return a, nil
}

func classify(focalKind string, affected int) Severity {
	switch {
	case statefulKinds[focalKind], affected > highThreshold:
		return SeverityHigh
	case affected > mediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
