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
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// --- Global Command Variables ---
var (
	configPath string
	projectDir string
	verbose    bool
	jsonOutput bool

	rootCmd = &cobra.Command{
		Use:   "unitgen",
		Short: "Generate compiling Foundry unit tests for Solidity contracts",
		Long: `unitgen asks a language model for unit tests, one function at a time,
compiles every candidate with forge and feeds compiler errors back to the
model until the test builds or the retry budget runs out.`,
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the unitgen version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "unitgen %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default ~/.unitgen/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "",
		"Foundry project root (overrides project_dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log every loop transition and raw forge output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Machine-readable output")

	rootCmd.AddCommand(generateCmd, indexCmd, describeCmd, verifyCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
