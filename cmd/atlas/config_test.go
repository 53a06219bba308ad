// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "local", cfg.ClusterID)
	assert.Equal(t, "local", cfg.Topology.ClusterID)
	require.NoError(t, cfg.Topology.Validate())
}

func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), true)
	assert.Error(t, err)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	content := `
port: 9191
cluster_id: prod-east
log_level: debug
topology:
  confidence_floor: 0.7
  cache_ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := loadConfig(path, true)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "prod-east", cfg.ClusterID)
	assert.Equal(t, "prod-east", cfg.Topology.ClusterID)
	assert.Equal(t, 0.7, cfg.Topology.ConfidenceFloor)
	assert.Equal(t, time.Minute, cfg.Topology.CacheTTL)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "~/.atlas/data", cfg.DataDir)
	assert.Positive(t, cfg.Topology.HierarchicalCutoff)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9191\n"), 0600))

	t.Setenv("ATLAS_PORT", "7070")
	t.Setenv("ATLAS_CLUSTER_ID", "staging")

	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "staging", cfg.ClusterID)
	assert.Equal(t, "staging", cfg.Topology.ClusterID)
}

func TestLoadConfig_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not an int\n"), 0600))

	_, err := loadConfig(path, true)
	assert.Error(t, err)
}
