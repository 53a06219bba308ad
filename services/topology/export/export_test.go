// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAtlas/services/topology/layout"
	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

func exportFixture(t *testing.T) (*model.TopologyGraph, *layout.Result) {
	t.Helper()
	g := &model.TopologyGraph{
		SchemaVersion: model.SchemaVersion,
		Nodes: []model.Node{
			{ID: "Namespace/web", Kind: "Namespace", Name: "web", Status: model.StatusHealthy},
			{ID: "Deployment/web/app", Kind: "Deployment", Namespace: "web", Name: "app", Status: model.StatusWarning},
			{ID: `Pod/web/a<b&"c"`, Kind: "Pod", Namespace: "web", Name: `a<b&"c"`, Status: model.StatusCritical},
		},
		Edges: []model.Edge{
			{
				ID:     model.EdgeID("Namespace/web", "Deployment/web/app", model.RelContains),
				Source: "Namespace/web", Target: "Deployment/web/app",
				RelationshipType: model.RelContains, Label: "contains",
				Metadata: model.EdgeMetadata{Derivation: "namespace-membership", Confidence: 1.0},
			},
			{
				ID:     model.EdgeID("Deployment/web/app", `Pod/web/a<b&"c"`, model.RelManages),
				Source: "Deployment/web/app", Target: `Pod/web/a<b&"c"`,
				RelationshipType: model.RelManages, Label: "manages",
				Metadata: model.EdgeMetadata{Derivation: "provenance-label", Confidence: 0.3, LowConfidence: true},
			},
		},
		Metadata: model.GraphMetadata{ClusterID: "demo", IsComplete: true},
	}
	g.Metadata.LayoutSeed = model.DeriveLayoutSeed(g)

	r, err := layout.NewEngine().Layout(context.Background(), g)
	require.NoError(t, err)
	return g, r
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("png")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExport_JSONRoundTrips(t *testing.T) {
	g, l := exportFixture(t)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, g, l, FormatJSON))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, model.SchemaVersion, doc.Graph.SchemaVersion)
	assert.Len(t, doc.Graph.Nodes, 3)
	assert.Len(t, doc.Layout.Positions, 3)
	assert.Equal(t, l.Seed, doc.Layout.Seed)
}

func TestExport_SVGIsWellFormed(t *testing.T) {
	g, l := exportFixture(t)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, g, l, FormatSVG))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Contains(t, out, "stroke-dasharray", "low confidence edges render dashed")

	// Escaped node names must not break the document.
	dec := xml.NewDecoder(strings.NewReader(out))
	for {
		_, err := dec.Token()
		if err != nil {
			assert.Equal(t, "EOF", err.Error())
			break
		}
	}
}

func TestExport_SVGIsDeterministic(t *testing.T) {
	g, l := exportFixture(t)
	var a, b bytes.Buffer
	require.NoError(t, Export(&a, g, l, FormatSVG))
	require.NoError(t, Export(&b, g, l, FormatSVG))
	assert.Equal(t, a.String(), b.String())
}

func TestExport_DrawIOIsWellFormed(t *testing.T) {
	g, l := exportFixture(t)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, g, l, FormatDrawIO))

	out := buf.String()
	assert.Contains(t, out, "<mxGraphModel")
	assert.Contains(t, out, `source="Namespace/web"`)

	dec := xml.NewDecoder(strings.NewReader(out))
	for {
		_, err := dec.Token()
		if err != nil {
			assert.Equal(t, "EOF", err.Error())
			break
		}
	}
}

func TestFormat_ContentType(t *testing.T) {
	assert.Equal(t, "application/json", FormatJSON.ContentType())
	assert.Equal(t, "image/svg+xml", FormatSVG.ContentType())
	assert.Equal(t, "application/xml", FormatDrawIO.ContentType())
}
