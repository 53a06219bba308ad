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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianAtlas/services/topology"
)

// Config is the atlas.yaml file shape. Absent keys keep their defaults;
// ATLAS_* environment variables override the file.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// ClusterID names the watched cluster. Copied into the topology
	// section when that leaves it empty.
	ClusterID string `yaml:"cluster_id"`

	// DataDir is the BadgerDB directory for the persistent layout cache.
	DataDir string `yaml:"data_dir"`

	// LayoutCacheTTL expires persisted layouts. Zero keeps them forever;
	// stale entries are harmless since the cache key embeds the content
	// hash.
	LayoutCacheTTL time.Duration `yaml:"layout_cache_ttl"`

	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`
	Debug    bool   `yaml:"debug"`

	// OTLPEndpoint enables trace export when non-empty ("host:4317").
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	StdoutTraces  bool   `yaml:"stdout_traces"`
	StdoutMetrics bool   `yaml:"stdout_metrics"`

	// Topology tunes the graph engine.
	Topology topology.Config `yaml:"topology"`
}

// UnmarshalYAML decodes layout_cache_ttl from a Go duration string and
// leaves absent keys at their current values.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Port           *int             `yaml:"port"`
		ClusterID      *string          `yaml:"cluster_id"`
		DataDir        *string          `yaml:"data_dir"`
		LayoutCacheTTL *string          `yaml:"layout_cache_ttl"`
		LogLevel       *string          `yaml:"log_level"`
		LogDir         *string          `yaml:"log_dir"`
		Debug          *bool            `yaml:"debug"`
		OTLPEndpoint   *string          `yaml:"otlp_endpoint"`
		StdoutTraces   *bool            `yaml:"stdout_traces"`
		StdoutMetrics  *bool            `yaml:"stdout_metrics"`
		Topology       *topology.Config `yaml:"topology"`
	}
	raw.Topology = &c.Topology
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Port != nil {
		c.Port = *raw.Port
	}
	if raw.ClusterID != nil {
		c.ClusterID = *raw.ClusterID
	}
	if raw.DataDir != nil {
		c.DataDir = *raw.DataDir
	}
	if raw.LayoutCacheTTL != nil {
		d, err := time.ParseDuration(*raw.LayoutCacheTTL)
		if err != nil {
			return fmt.Errorf("layout_cache_ttl: %w", err)
		}
		c.LayoutCacheTTL = d
	}
	if raw.LogLevel != nil {
		c.LogLevel = *raw.LogLevel
	}
	if raw.LogDir != nil {
		c.LogDir = *raw.LogDir
	}
	if raw.Debug != nil {
		c.Debug = *raw.Debug
	}
	if raw.OTLPEndpoint != nil {
		c.OTLPEndpoint = *raw.OTLPEndpoint
	}
	if raw.StdoutTraces != nil {
		c.StdoutTraces = *raw.StdoutTraces
	}
	if raw.StdoutMetrics != nil {
		c.StdoutMetrics = *raw.StdoutMetrics
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Port:      8080,
		ClusterID: "local",
		DataDir:   "~/.atlas/data",
		LogLevel:  "info",
		Topology:  topology.DefaultConfig("local"),
	}
}

// loadConfig builds the effective config: defaults, then the YAML file
// when present, then environment overrides. A missing file at the
// default path is fine; an explicitly given path must exist.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Run on defaults.
	default:
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	// The top-level cluster_id names the cluster everywhere.
	cfg.Topology.ClusterID = cfg.ClusterID
	return cfg, nil
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATLAS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("ATLAS_CLUSTER_ID"); v != "" {
		cfg.ClusterID = v
	}
	if v := os.Getenv("ATLAS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ATLAS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ATLAS_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
}
