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

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// --- Global Command Variables ---
var (
	configPath string
	port       int
	clusterID  string
	logLevel   string
	demoMode   bool
	debugMode  bool

	rootCmd = &cobra.Command{
		Use:   "atlas",
		Short: "Atlas infrastructure topology engine",
		Long: `Atlas watches an object store of cluster resources, infers the
relationship graph between them, and serves interactive topology,
layout, blast-radius, and export APIs.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the topology API server",
		RunE:  runServe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the atlas version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("atlas %s\n", version)
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "atlas.yaml", "Path to the YAML config file")
	serveCmd.Flags().IntVar(&port, "port", 0, "HTTP listen port (overrides config)")
	serveCmd.Flags().StringVar(&clusterID, "cluster-id", "", "Cluster identifier (overrides config)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	serveCmd.Flags().BoolVar(&demoMode, "demo", false, "Serve a built-in fixture cluster instead of a real store")
	serveCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug mode")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
