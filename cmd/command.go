// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry - an S3-compatible object storage server",
	Long: `Quarry is a single-node object storage server speaking the S3 protocol.
Each bucket gets an isolated metadata store and a content-addressed blob
directory; objects are versioned, taggable and ACL-controlled.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
