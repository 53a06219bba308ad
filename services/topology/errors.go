// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package topology

import "errors"

var (
	// ErrNotReady means the service has not published a first snapshot
	// yet. Maps to 503, distinct from a 404 for an unknown resource.
	ErrNotReady = errors.New("topology: graph not available yet")

	// ErrStopped means the service has been shut down.
	ErrStopped = errors.New("topology: service stopped")
)
