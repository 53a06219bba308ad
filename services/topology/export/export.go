// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export renders topology snapshots to portable formats: the raw
// JSON contract, a standalone SVG, and a draw.io document. Exports embed
// the computed layout so every format shows the same arrangement.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/AleutianAI/AleutianAtlas/services/topology/layout"
	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// Format selects the export renderer.
type Format string

const (
	FormatJSON   Format = "json"
	FormatSVG    Format = "svg"
	FormatDrawIO Format = "drawio"
)

// ErrUnsupportedFormat means the requested format has no renderer.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatSVG, FormatDrawIO}

// ParseFormat validates a format string from a request.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatDrawIO:
		return "application/xml"
	default:
		return "application/json"
	}
}

// Document is the JSON export payload: the graph plus its layout.
type Document struct {
	Graph  *model.TopologyGraph `json:"graph"`
	Layout *layout.Result       `json:"layout"`
}

// Export renders g with its layout to w in the given format.
func Export(w io.Writer, g *model.TopologyGraph, l *layout.Result, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Document{Graph: g, Layout: l})
	case FormatSVG:
		return writeSVG(w, g, l)
	case FormatDrawIO:
		return writeDrawIO(w, g, l)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
