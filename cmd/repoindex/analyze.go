package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/repoindex/internal/storage"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a repository, or print the stored analysis of --project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && flagProject == 0 {
			return errors.New("either a path or --project is required")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var analysis any
		if len(args) == 1 {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			files, err := a.scanner.Scan(cmd.Context(), root)
			if err != nil {
				return err
			}
			analysis = a.analyzer.Analyze(cmd.Context(), root, files)
		} else {
			stored, err := a.store.LoadAnalysis(cmd.Context(), flagProject)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("project %d has not been indexed", flagProject)
			}
			if err != nil {
				return err
			}
			analysis = stored
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	},
}

func init() {
	analyzeCmd.Flags().Int64Var(&flagProject, "project", 0, "print the analysis stored for this project")
	rootCmd.AddCommand(analyzeCmd)
}
