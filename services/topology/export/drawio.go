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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianAtlas/services/topology/layout"
	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

const (
	drawioNodeWidth  = 160.0
	drawioNodeHeight = 48.0
)

// writeDrawIO renders an uncompressed draw.io (mxGraph) document that the
// diagrams.net editor opens directly. Vertices keep the computed layout
// positions; edges reference vertices by node id.
func writeDrawIO(w io.Writer, g *model.TopologyGraph, l *layout.Result) error {
	var b strings.Builder
	b.WriteString(`<mxfile host="atlas">` + "\n")
	fmt.Fprintf(&b, `<diagram id="topology" name="%s">`+"\n", escape(g.Metadata.ClusterID))
	b.WriteString(`<mxGraphModel dx="0" dy="0" grid="1" gridSize="10" arrows="1">` + "\n<root>\n")
	b.WriteString(`<mxCell id="0"/>` + "\n")
	b.WriteString(`<mxCell id="1" parent="0"/>` + "\n")

	nodes := make([]model.Node, len(g.Nodes))
	copy(nodes, g.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, n := range nodes {
		p := l.Positions[n.ID]
		label := fmt.Sprintf("%s\n%s", n.Kind, n.Name)
		fmt.Fprintf(&b,
			`<mxCell id="%s" value="%s" style="rounded=1;whiteSpace=wrap;" vertex="1" parent="1"><mxGeometry x="%.2f" y="%.2f" width="%.0f" height="%.0f" as="geometry"/></mxCell>`+"\n",
			escape(n.ID), escape(label), p.X, p.Y, drawioNodeWidth, drawioNodeHeight)
	}

	edges := make([]model.Edge, len(g.Edges))
	copy(edges, g.Edges)
	sort.Slice(edges, func(i, j int) bool { return edges[i].Key() < edges[j].Key() })
	for _, e := range edges {
		style := "endArrow=block;"
		if e.Metadata.LowConfidence {
			style += "dashed=1;"
		}
		fmt.Fprintf(&b,
			`<mxCell id="%s" value="%s" style="%s" edge="1" parent="1" source="%s" target="%s"><mxGeometry relative="1" as="geometry"/></mxCell>`+"\n",
			escape(e.ID), escape(e.Label), style, escape(e.Source), escape(e.Target))
	}

	b.WriteString("</root>\n</mxGraphModel>\n</diagram>\n</mxfile>\n")
	_, err := io.WriteString(w, b.String())
	return err
}
