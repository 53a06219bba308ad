// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the object-store boundary the topology engine
// consumes. The store owns raw resource state and its persistence; the
// engine treats everything it derives from this boundary as a rebuildable
// cache, never a source of truth.
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when the identity does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// Delta is one batch of changes from the watch stream. Every record
// carries a monotonic revision token per identity.
type Delta struct {
	Added   []model.ResourceRecord
	Updated []model.ResourceRecord
	Removed []model.Identity
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Store supplies the current and historical state of every resource
// instance. Implementations must be safe for concurrent use.
type Store interface {
	// List returns the full current record set.
	List(ctx context.Context) ([]model.ResourceRecord, error)

	// Watch returns a channel of deltas starting after the current state.
	// The channel closes when ctx is done or the store shuts down.
	// Callers re-List after a closed channel to resynchronize.
	Watch(ctx context.Context) (<-chan Delta, error)

	// Get returns the record for an identity.
	Get(ctx context.Context, id model.Identity) (model.ResourceRecord, error)
}
