// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// MemoryStore is an in-memory Store used by tests and demo mode. Mutations
// through Apply fan out to every active watcher.
//
// Thread Safety: safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]model.ResourceRecord
	watchers map[string]chan Delta
	revision int64
	closed   bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]model.ResourceRecord),
		watchers: make(map[string]chan Delta),
	}
}

// watchBuffer bounds how far a slow watcher may fall behind before its
// channel is closed and it must re-List.
const watchBuffer = 64

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]model.ResourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.ResourceRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id model.Identity) (model.ResourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.ResourceRecord{}, ErrClosed
	}
	rec, ok := s.records[id.ID()]
	if !ok {
		return model.ResourceRecord{}, ErrNotFound
	}
	return rec, nil
}

// Watch implements Store. The returned channel closes when ctx is done or
// the store is closed.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan Delta, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	id := uuid.NewString()
	ch := make(chan Delta, watchBuffer)
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if existing, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(existing)
		}
		s.mu.Unlock()
	}()

	return ch, nil
}

// Apply upserts and removes records, stamping each added/updated record
// with the next monotonic revision, then notifies watchers. Records passed
// with a non-empty Revision keep it (used by tests simulating out-of-order
// delivery).
func (s *MemoryStore) Apply(delta Delta) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	stamp := func(recs []model.ResourceRecord) []model.ResourceRecord {
		out := make([]model.ResourceRecord, len(recs))
		for i, rec := range recs {
			if rec.Revision == "" {
				s.revision++
				rec.Revision = strconv.FormatInt(s.revision, 10)
			}
			out[i] = rec
		}
		return out
	}
	delta.Added = stamp(delta.Added)
	delta.Updated = stamp(delta.Updated)

	for _, rec := range delta.Added {
		s.records[rec.Identity.ID()] = rec
	}
	for _, rec := range delta.Updated {
		s.records[rec.Identity.ID()] = rec
	}
	for _, id := range delta.Removed {
		delete(s.records, id.ID())
	}

	for id, ch := range s.watchers {
		select {
		case ch <- delta:
		default:
			// A saturated watcher is cut off rather than left to miss
			// this delta; the closed channel tells its consumer to
			// re-List.
			delete(s.watchers, id)
			close(ch)
		}
	}
	s.mu.Unlock()
}

// Add is a convenience wrapper for Apply with a single added record.
func (s *MemoryStore) Add(rec model.ResourceRecord) {
	s.Apply(Delta{Added: []model.ResourceRecord{rec}})
}

// Update is a convenience wrapper for Apply with a single updated record.
func (s *MemoryStore) Update(rec model.ResourceRecord) {
	s.Apply(Delta{Updated: []model.ResourceRecord{rec}})
}

// Remove is a convenience wrapper for Apply with a single removal.
func (s *MemoryStore) Remove(id model.Identity) {
	s.Apply(Delta{Removed: []model.Identity{id}})
}

// Close shuts the store down and closes every watcher channel.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
}

var _ Store = (*MemoryStore)(nil)
