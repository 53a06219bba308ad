// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "errors"

var (
	// ErrGraphUnavailable means no snapshot has been published yet.
	ErrGraphUnavailable = errors.New("graph: no snapshot available")

	// ErrNodeNotFound means the requested node id is not in the current
	// snapshot.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrInvalidGraph means a rebuild produced a structurally invalid
	// graph; the previous snapshot was retained.
	ErrInvalidGraph = errors.New("graph: rebuild failed validation")

	// ErrClosed means the builder has been shut down.
	ErrClosed = errors.New("graph: builder closed")
)
