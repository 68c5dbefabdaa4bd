package main

import (
	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "repoindex",
	Short:         "Repository indexing and semantic code retrieval",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file (default: defaults plus REPOINDEX_* environment)")
}
