// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate certifies topology graphs before publication. A graph
// that fails a fatal check must never replace a served snapshot; the
// builder keeps its last known good graph instead.
package validate

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// DefaultConfidenceFloor is the edge confidence below which edges are
// flagged for de-emphasis. Flagged, never dropped.
const DefaultConfidenceFloor = 0.5

const (
	CheckReferentialIntegrity = "referential_integrity"
	CheckDuplicateEdges       = "duplicate_edges"
	CheckCompleteness         = "completeness"
	CheckConfidenceFloor      = "confidence_floor"
)

// Validator runs the fixed check sequence over one graph.
type Validator struct {
	confidenceFloor float64
}

// Option configures a Validator.
type Option func(*Validator)

// WithConfidenceFloor overrides the low-confidence display floor.
func WithConfidenceFloor(floor float64) Option {
	return func(v *Validator) { v.confidenceFloor = floor }
}

// New creates a Validator with the default floor.
func New(opts ...Option) *Validator {
	v := &Validator{confidenceFloor: DefaultConfidenceFloor}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs all checks in fixed order and returns the result. The
// confidence floor audit annotates the graph in place: edges below the
// floor get their LowConfidence flag set, and one aggregated warning is
// appended to the graph metadata. Fatal findings (dangling edge endpoints,
// duplicate triples, a completeness flag with no explaining warning) mark
// the result invalid.
func (v *Validator) Validate(g *model.TopologyGraph) model.ValidationResult {
	result := model.ValidationResult{IsValid: true}

	nodeIDs := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeIDs[n.ID] = true
	}

	// Check 1: every edge endpoint resolves to a node.
	for _, e := range g.Edges {
		if !nodeIDs[e.Source] {
			result.Errors = append(result.Errors, model.ValidationError{
				Check:   CheckReferentialIntegrity,
				Message: fmt.Sprintf("edge %s source %q is not a node", e.ID, e.Source),
				EdgeID:  e.ID,
			})
		}
		if !nodeIDs[e.Target] {
			result.Errors = append(result.Errors, model.ValidationError{
				Check:   CheckReferentialIntegrity,
				Message: fmt.Sprintf("edge %s target %q is not a node", e.ID, e.Target),
				EdgeID:  e.ID,
			})
		}
	}

	// Check 2: no duplicate (source, target, type) triples.
	seen := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		key := e.Key()
		if seen[key] {
			result.Errors = append(result.Errors, model.ValidationError{
				Check:   CheckDuplicateEdges,
				Message: fmt.Sprintf("duplicate edge triple %s", key),
				EdgeID:  e.ID,
			})
		}
		seen[key] = true
	}

	// Check 3: an incomplete graph must say why.
	if !g.Metadata.IsComplete && len(g.Metadata.Warnings) == 0 {
		result.Errors = append(result.Errors, model.ValidationError{
			Check:   CheckCompleteness,
			Message: "graph marked incomplete without an explaining warning",
		})
	}

	// Check 4: flag low-confidence edges and aggregate one warning.
	var flagged []string
	for i := range g.Edges {
		if g.Edges[i].Metadata.Confidence < v.confidenceFloor {
			g.Edges[i].Metadata.LowConfidence = true
			flagged = append(flagged, g.Edges[i].Source, g.Edges[i].Target)
		}
	}
	if len(flagged) > 0 {
		sort.Strings(flagged)
		flagged = dedupStrings(flagged)
		g.Metadata.Warnings = append(g.Metadata.Warnings, model.Warning{
			Code:          model.WarnLowConfidence,
			Message:       fmt.Sprintf("%d edges fall below the %.2f confidence floor", countLow(g.Edges), v.confidenceFloor),
			AffectedNodes: flagged,
		})
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func countLow(edges []model.Edge) int {
	n := 0
	for _, e := range edges {
		if e.Metadata.LowConfidence {
			n++
		}
	}
	return n
}

func dedupStrings(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}
