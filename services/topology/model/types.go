// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the topology graph wire contract shared by every
// consumer of the engine: the interactive viewer, the static exporter, and
// programmatic analysis clients.
//
// The contract is versioned via TopologyGraph.SchemaVersion. Field names are
// stable; renaming a JSON key is a breaking change and requires a schema
// version bump.
package model

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// SchemaVersion is the current topology graph contract version.
const SchemaVersion = "1.0"

// Identity uniquely names one resource within a cluster snapshot.
// Cluster-scoped kinds leave Namespace empty.
type Identity struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

// ID returns the deterministic node id for this identity:
// "kind/namespace/name" for namespaced kinds, "kind/name" otherwise.
func (id Identity) ID() string {
	if id.Namespace == "" {
		return id.Kind + "/" + id.Name
	}
	return id.Kind + "/" + id.Namespace + "/" + id.Name
}

// String implements fmt.Stringer.
func (id Identity) String() string { return id.ID() }

// OwnerReference is a structurally explicit pointer from a dependent
// resource back to its controller.
type OwnerReference struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	UID  string `json:"uid,omitempty"`
}

// ResourceRecord is one instance of a managed infrastructure object as
// supplied by the object store. It is read-only to the engine.
//
// Spec and Status are opaque structured documents; relationship rules pull
// typed values out of them defensively and report a warning when an expected
// sub-document is malformed.
type ResourceRecord struct {
	Identity
	APIVersion      string            `json:"apiVersion,omitempty"`
	UID             string            `json:"uid,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
	Annotations     map[string]string `json:"annotations,omitempty"`
	OwnerReferences []OwnerReference  `json:"ownerReferences,omitempty"`
	CreatedAt       time.Time         `json:"createdAt,omitempty"`
	Spec            map[string]any    `json:"spec,omitempty"`
	Status          map[string]any    `json:"status,omitempty"`

	// Revision is a monotonic token per identity. Updates carrying a
	// revision older than the last applied one are discarded.
	Revision string `json:"revision"`
}

// CompareRevisions orders two revision tokens. Both numeric: numeric order.
// Otherwise lexicographic, which is only a best effort - the upstream store
// guarantees monotonicity, we only need to detect reordering in flight.
//
// Returns -1, 0, or 1.
func CompareRevisions(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// NodeStatus is the closed set of lifecycle states resolved from a record.
type NodeStatus string

const (
	StatusHealthy  NodeStatus = "healthy"
	StatusWarning  NodeStatus = "warning"
	StatusCritical NodeStatus = "critical"
	StatusUnknown  NodeStatus = "unknown"
)

// NodeMetadata carries the record attributes a viewer needs for detail
// panes and filtering.
type NodeMetadata struct {
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
	UID         string            `json:"uid,omitempty"`
}

// Node represents one ResourceRecord at a point in graph time. The Graph
// Builder exclusively owns node lifecycle.
type Node struct {
	ID         string       `json:"id"`
	Kind       string       `json:"kind"`
	Namespace  string       `json:"namespace,omitempty"`
	Name       string       `json:"name"`
	APIVersion string       `json:"apiVersion,omitempty"`
	Status     NodeStatus   `json:"status,omitempty"`
	Metadata   NodeMetadata `json:"metadata"`
}

// RelationshipType is a closed category describing why two resources are
// connected. One inference rule exists per type.
type RelationshipType string

const (
	RelOwns       RelationshipType = "owns"
	RelSelects    RelationshipType = "selects"
	RelMounts     RelationshipType = "mounts"
	RelStores     RelationshipType = "stores"
	RelReferences RelationshipType = "references"
	RelSchedules  RelationshipType = "schedules"
	RelConfigures RelationshipType = "configures"
	RelPermits    RelationshipType = "permits"
	RelValidates  RelationshipType = "validates"
	RelMutates    RelationshipType = "mutates"
	RelExposes    RelationshipType = "exposes"
	RelRoutes     RelationshipType = "routes"
	RelLimits     RelationshipType = "limits"
	RelManages    RelationshipType = "manages"
	RelContains   RelationshipType = "contains"
)

// RelationshipTypes lists every relationship type in catalog order.
var RelationshipTypes = []RelationshipType{
	RelOwns, RelSelects, RelMounts, RelStores, RelReferences, RelSchedules,
	RelConfigures, RelPermits, RelValidates, RelMutates, RelExposes,
	RelRoutes, RelLimits, RelManages, RelContains,
}

// Label returns the display string for a relationship type.
func (t RelationshipType) Label() string {
	switch t {
	case RelOwns:
		return "owns"
	case RelSelects:
		return "selects"
	case RelMounts:
		return "mounts"
	case RelStores:
		return "stores"
	case RelReferences:
		return "references"
	case RelSchedules:
		return "schedules"
	case RelConfigures:
		return "configures"
	case RelPermits:
		return "permits"
	case RelValidates:
		return "validates"
	case RelMutates:
		return "mutates"
	case RelExposes:
		return "exposes"
	case RelRoutes:
		return "routes to"
	case RelLimits:
		return "limits"
	case RelManages:
		return "manages"
	case RelContains:
		return "contains"
	default:
		return string(t)
	}
}

// EdgeMetadata explains how an edge was derived.
type EdgeMetadata struct {
	// Derivation names the rule that produced the edge.
	Derivation string `json:"derivation"`

	// Confidence is 0.0-1.0. 1.0 means structurally certain (explicit
	// owner reference); lower values mean heuristic matches.
	Confidence float64 `json:"confidence"`

	// SourceField is the record field that justified the edge, for
	// explainability ("spec.selector", "metadata.ownerReferences", ...).
	SourceField string `json:"sourceField,omitempty"`

	// LowConfidence marks edges below the configured display floor.
	// Flagged, never dropped - filtering is a consumer-side choice.
	LowConfidence bool `json:"lowConfidence,omitempty"`
}

// Edge represents one inferred relationship between exactly two nodes.
// Edges are directed; relationship semantics pick the conventional
// direction (owns points from controller to dependent).
type Edge struct {
	ID               string           `json:"id"`
	Source           string           `json:"source"`
	Target           string           `json:"target"`
	RelationshipType RelationshipType `json:"relationshipType"`
	Label            string           `json:"label"`
	Metadata         EdgeMetadata     `json:"metadata"`
}

// Key returns the (source, target, type) triple key used for deduplication
// and for layout seed derivation.
func (e Edge) Key() string {
	return EdgeKey(e.Source, e.Target, e.RelationshipType)
}

// EdgeKey builds the canonical triple key for an edge.
func EdgeKey(source, target string, t RelationshipType) string {
	return source + "->" + target + ":" + string(t)
}

// EdgeID derives the deterministic edge id from source, target, and type,
// so re-deriving the same relationship never produces a duplicate.
func EdgeID(source, target string, t RelationshipType) string {
	return fmt.Sprintf("e-%016x", xxhash.Sum64String(EdgeKey(source, target, t)))
}

// WarningCode classifies non-fatal graph issues.
type WarningCode string

const (
	WarnRuleSkipped       WarningCode = "rule_skipped"
	WarnAmbiguousSelector WarningCode = "ambiguous_selector"
	WarnOrphanedResource  WarningCode = "orphaned_resource"
	WarnLowConfidence     WarningCode = "low_confidence_edges"
	WarnTraversalBounded  WarningCode = "traversal_bounded"
	WarnStaleRevision     WarningCode = "stale_revision_dropped"
)

// Warning is a non-fatal issue attached to a graph. It names the affected
// node ids so viewers can surface it inline.
type Warning struct {
	Code          WarningCode `json:"code"`
	Message       string      `json:"message"`
	AffectedNodes []string    `json:"affectedNodes,omitempty"`
}

// ValidationError is one structural defect found by the validation layer.
type ValidationError struct {
	Check   string `json:"check"`
	Message string `json:"message"`
	EdgeID  string `json:"edgeId,omitempty"`
	NodeID  string `json:"nodeId,omitempty"`
}

// ValidationResult certifies a graph. IsValid false means the graph must
// not be served as a normal response.
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// GraphStats carries aggregate counts for dashboards.
type GraphStats struct {
	NodeCount  int            `json:"nodeCount"`
	EdgeCount  int            `json:"edgeCount"`
	KindCounts map[string]int `json:"kindCounts,omitempty"`
}

// GraphMetadata is graph-level metadata attached to every snapshot.
type GraphMetadata struct {
	ClusterID   string            `json:"clusterId"`
	GeneratedAt time.Time         `json:"generatedAt"`
	LayoutSeed  string            `json:"layoutSeed"`
	IsComplete  bool              `json:"isComplete"`
	Validation  *ValidationResult `json:"validation,omitempty"`
	Warnings    []Warning         `json:"warnings,omitempty"`
	Stats       GraphStats        `json:"stats"`
}

// TopologyGraph is the aggregate, immutable snapshot handed to consumers.
//
// Invariant: IsComplete == false implies len(Warnings) > 0. Invariant:
// every edge's Source and Target resolve to a node in Nodes. Both are
// enforced by the validation layer on every published snapshot.
type TopologyGraph struct {
	SchemaVersion string        `json:"schemaVersion"`
	Nodes         []Node        `json:"nodes"`
	Edges         []Edge        `json:"edges"`
	Metadata      GraphMetadata `json:"metadata"`
}

// NodeByID returns the node with the given id, or nil.
func (g *TopologyGraph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// SortedNodeIDs returns every node id in ascending order.
func (g *TopologyGraph) SortedNodeIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	sort.Strings(ids)
	return ids
}

// SortedEdgeKeys returns every (source,target,type) key in ascending order.
func (g *TopologyGraph) SortedEdgeKeys() []string {
	keys := make([]string, len(g.Edges))
	for i, e := range g.Edges {
		keys[i] = e.Key()
	}
	sort.Strings(keys)
	return keys
}

// ComputeStats recounts nodes, edges, and the per-kind histogram.
func (g *TopologyGraph) ComputeStats() GraphStats {
	stats := GraphStats{
		NodeCount:  len(g.Nodes),
		EdgeCount:  len(g.Edges),
		KindCounts: make(map[string]int, 8),
	}
	for _, n := range g.Nodes {
		stats.KindCounts[n.Kind]++
	}
	return stats
}

// Position is a 2D node coordinate computed by the layout engine.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphDelta describes the node/edge churn produced by one applied
// object-store delta. Consumers use it for incremental viewer updates.
type GraphDelta struct {
	AddedNodes   []Node    `json:"addedNodes,omitempty"`
	UpdatedNodes []Node    `json:"updatedNodes,omitempty"`
	RemovedNodes []string  `json:"removedNodes,omitempty"`
	AddedEdges   []Edge    `json:"addedEdges,omitempty"`
	RemovedEdges []string  `json:"removedEdges,omitempty"`
	Warnings     []Warning `json:"warnings,omitempty"`
}

// Empty reports whether the delta changed nothing.
func (d *GraphDelta) Empty() bool {
	return len(d.AddedNodes) == 0 && len(d.UpdatedNodes) == 0 &&
		len(d.RemovedNodes) == 0 && len(d.AddedEdges) == 0 &&
		len(d.RemovedEdges) == 0
}
