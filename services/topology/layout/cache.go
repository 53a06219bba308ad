// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Cache stores exact layout results keyed by (content hash, seed).
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (*Result, bool)
	Put(key string, result *Result)
}

// MemoryCache is a bounded in-process layout cache. When full it evicts
// the least recently inserted entry.
type MemoryCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*Result
	order   []string
}

// NewMemoryCache creates a cache holding at most max entries.
func NewMemoryCache(max int) *MemoryCache {
	if max <= 0 {
		max = 64
	}
	return &MemoryCache{
		max:     max,
		entries: make(map[string]*Result, max),
	}
}

// Get returns the cached result for key.
func (c *MemoryCache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

// Put stores result under key, evicting the oldest entry when full.
func (c *MemoryCache) Put(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = result
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// badgerKeyPrefix namespaces layout entries inside a shared database.
var badgerKeyPrefix = []byte("layout/")

// BadgerCache persists layout results so a restarted process serves the
// same positions it did before. Entries expire via TTL; a corrupt or
// unreadable entry is treated as a miss.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
	log *slog.Logger
}

// NewBadgerCache wraps an open database. ttl <= 0 means entries never
// expire.
func NewBadgerCache(db *badger.DB, ttl time.Duration, log *slog.Logger) *BadgerCache {
	if log == nil {
		log = slog.Default()
	}
	return &BadgerCache{db: db, ttl: ttl, log: log}
}

// Get returns the persisted result for key.
func (c *BadgerCache) Get(key string) (*Result, bool) {
	var result Result
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(append(badgerKeyPrefix, key...))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.log.Warn("layout cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return &result, true
}

// Put persists result under key.
func (c *BadgerCache) Put(key string, result *Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		c.log.Warn("layout cache encode failed", "key", key, "error", err)
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(append(badgerKeyPrefix, key...), payload)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.log.Warn("layout cache write failed", "key", key, "error", err)
	}
}
