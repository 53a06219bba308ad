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
	svgMargin     = 60.0
	svgNodeRadius = 14.0
)

// statusColors maps node status to fill colors.
var statusColors = map[model.NodeStatus]string{
	model.StatusHealthy:  "#2e7d32",
	model.StatusWarning:  "#f9a825",
	model.StatusCritical: "#c62828",
	model.StatusUnknown:  "#757575",
}

// writeSVG renders a standalone SVG document. Node and edge order is
// sorted, so the byte output for a given graph and layout is stable.
func writeSVG(w io.Writer, g *model.TopologyGraph, l *layout.Result) error {
	minX, minY, maxX, maxY := bounds(l.Positions)
	width := maxX - minX + 2*svgMargin
	height := maxY - minY + 2*svgMargin
	tx := func(x float64) float64 { return x - minX + svgMargin }
	ty := func(y float64) float64 { return y - minY + svgMargin }

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`+"\n",
		width, height, width, height)
	fmt.Fprintf(&b, `<title>%s</title>`+"\n", escape(g.Metadata.ClusterID))

	edges := make([]model.Edge, len(g.Edges))
	copy(edges, g.Edges)
	sort.Slice(edges, func(i, j int) bool { return edges[i].Key() < edges[j].Key() })
	b.WriteString(`<g stroke="#90a4ae" stroke-width="1.5">` + "\n")
	for _, e := range edges {
		src, sok := l.Positions[e.Source]
		dst, dok := l.Positions[e.Target]
		if !sok || !dok {
			continue
		}
		dash := ""
		if e.Metadata.LowConfidence {
			dash = ` stroke-dasharray="4 3"`
		}
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"%s><title>%s</title></line>`+"\n",
			tx(src.X), ty(src.Y), tx(dst.X), ty(dst.Y), dash, escape(e.Label))
	}
	b.WriteString("</g>\n")

	nodes := make([]model.Node, len(g.Nodes))
	copy(nodes, g.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	b.WriteString(`<g font-family="sans-serif" font-size="11">` + "\n")
	for _, n := range nodes {
		p, ok := l.Positions[n.ID]
		if !ok {
			continue
		}
		color, ok := statusColors[n.Status]
		if !ok {
			color = statusColors[model.StatusUnknown]
		}
		fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="%.0f" fill="%s"><title>%s</title></circle>`+"\n",
			tx(p.X), ty(p.Y), svgNodeRadius, color, escape(n.ID))
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" text-anchor="middle">%s</text>`+"\n",
			tx(p.X), ty(p.Y)+svgNodeRadius+12, escape(n.Name))
	}
	b.WriteString("</g>\n</svg>\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func bounds(positions map[string]model.Position) (minX, minY, maxX, maxY float64) {
	first := true
	for _, p := range positions {
		if first {
			minX, maxX = p.X, p.X
			minY, maxY = p.Y, p.Y
			first = false
			continue
		}
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minX, minY, maxX, maxY
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return escaper.Replace(s)
}
