// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules implements the relationship rules engine: a fixed catalog
// of inference rules, each examining one record (plus a lookup index of
// candidate partners) and producing zero or more typed, weighted
// relationship candidates.
//
// Rules are pure functions: they never mutate input and never perform I/O.
// A rule that cannot parse a record's relevant field skips that record and
// emits a warning keyed to the affected node id; it never aborts the
// inference pass.
package rules

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// Candidate is one proposed relationship between two existing records.
type Candidate struct {
	// Source and Target are node ids (model.Identity.ID()).
	Source string
	Target string

	Type       model.RelationshipType
	Confidence float64

	// SourceField names the record field that justified the candidate.
	SourceField string
}

// Rule infers one relationship type. Exactly one rule exists per type.
type Rule interface {
	// Name identifies the rule in edge derivation metadata.
	Name() string

	// Type is the relationship type this rule produces.
	Type() model.RelationshipType

	// Infer examines one record against the index and returns candidates
	// plus any non-fatal warnings. Implementations must not mutate rec
	// or idx and must be deterministic for a fixed (rec, idx) pair.
	Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning)
}

// Index is an immutable lookup structure over one record set. Partner
// rules consult it instead of rescanning the full slice.
type Index struct {
	byID   map[string]model.ResourceRecord
	byUID  map[string]model.ResourceRecord
	byKind map[string][]model.ResourceRecord
}

// NewIndex builds an index over records. Per-kind slices are sorted by
// node id so iteration order never leaks into inference output.
func NewIndex(records []model.ResourceRecord) *Index {
	idx := &Index{
		byID:   make(map[string]model.ResourceRecord, len(records)),
		byUID:  make(map[string]model.ResourceRecord, len(records)),
		byKind: make(map[string][]model.ResourceRecord, 16),
	}
	for _, rec := range records {
		idx.byID[rec.Identity.ID()] = rec
		if rec.UID != "" {
			idx.byUID[rec.UID] = rec
		}
		idx.byKind[rec.Kind] = append(idx.byKind[rec.Kind], rec)
	}
	for kind := range idx.byKind {
		recs := idx.byKind[kind]
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].Identity.ID() < recs[j].Identity.ID()
		})
	}
	return idx
}

// Has reports whether a node id exists in the indexed record set.
func (idx *Index) Has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// Get returns the record for a node id.
func (idx *Index) Get(id string) (model.ResourceRecord, bool) {
	rec, ok := idx.byID[id]
	return rec, ok
}

// GetByUID returns the record carrying the given uid.
func (idx *Index) GetByUID(uid string) (model.ResourceRecord, bool) {
	rec, ok := idx.byUID[uid]
	return rec, ok
}

// ByKind returns all records of a kind, sorted by node id. The returned
// slice is shared; callers must not modify it.
func (idx *Index) ByKind(kind string) []model.ResourceRecord {
	return idx.byKind[kind]
}

// Find returns the record for (kind, namespace, name).
func (idx *Index) Find(kind, namespace, name string) (model.ResourceRecord, bool) {
	return idx.Get(model.Identity{Kind: kind, Namespace: namespace, Name: name}.ID())
}

// Engine runs the full catalog over a record set.
//
// Thread Safety: safe for concurrent use; Engine holds only the immutable
// rule list.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the default catalog.
func NewEngine() *Engine {
	return &Engine{rules: Catalog()}
}

// NewEngineWithRules creates an engine with an explicit rule list, used by
// tests exercising a single rule.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// InferAll runs every rule over every record and returns the deduplicated
// edge set plus aggregated warnings.
//
// Tie-break policy: distinct relationship types between the same (source,
// target) pair all survive; when one rule derives the same (source, target,
// type) triple from several source fields, the highest-confidence
// derivation wins.
//
// Rules run concurrently; the merge happens in fixed catalog order so the
// result is independent of scheduling.
func (e *Engine) InferAll(records []model.ResourceRecord) ([]model.Edge, []model.Warning) {
	idx := NewIndex(records)

	sorted := make([]model.ResourceRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Identity.ID() < sorted[j].Identity.ID()
	})

	type ruleOutput struct {
		candidates []Candidate
		warnings   []model.Warning
	}
	outputs := make([]ruleOutput, len(e.rules))

	var g errgroup.Group
	for i, rule := range e.rules {
		g.Go(func() error {
			var out ruleOutput
			for _, rec := range sorted {
				cands, warns := rule.Infer(rec, idx)
				out.candidates = append(out.candidates, cands...)
				out.warnings = append(out.warnings, warns...)
			}
			outputs[i] = out
			return nil
		})
	}
	_ = g.Wait() // rules never return errors; failures surface as warnings

	var warnings []model.Warning
	best := make(map[string]candidateFrom, 64)
	for i, rule := range e.rules {
		warnings = append(warnings, outputs[i].warnings...)
		for _, c := range outputs[i].candidates {
			if !idx.Has(c.Source) || !idx.Has(c.Target) {
				continue
			}
			key := model.EdgeKey(c.Source, c.Target, c.Type)
			if prev, ok := best[key]; ok && prev.cand.Confidence >= c.Confidence {
				continue
			}
			best[key] = candidateFrom{cand: c, rule: rule.Name()}
		}
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	edges := make([]model.Edge, 0, len(keys))
	for _, k := range keys {
		cf := best[k]
		c := cf.cand
		edges = append(edges, model.Edge{
			ID:               model.EdgeID(c.Source, c.Target, c.Type),
			Source:           c.Source,
			Target:           c.Target,
			RelationshipType: c.Type,
			Label:            c.Type.Label(),
			Metadata: model.EdgeMetadata{
				Derivation:  cf.rule,
				Confidence:  c.Confidence,
				SourceField: c.SourceField,
			},
		})
	}
	return edges, warnings
}

type candidateFrom struct {
	cand Candidate
	rule string
}

// skipWarning builds the standard malformed-field warning.
func skipWarning(rule string, nodeID, field string, err error) model.Warning {
	return model.Warning{
		Code:          model.WarnRuleSkipped,
		Message:       fmt.Sprintf("rule %s skipped %s: cannot parse %s: %v", rule, nodeID, field, err),
		AffectedNodes: []string{nodeID},
	}
}
