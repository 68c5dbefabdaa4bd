package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/repoindex/internal/indexer"
)

var (
	flagProject int64
	flagFiles   []string
	flagModel   string
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Fully reindex a repository into a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		release, ok := a.locks.TryAcquire(flagProject)
		if !ok {
			return fmt.Errorf("project %d is already being indexed", flagProject)
		}
		defer release()

		res, err := a.indexer.IndexRepository(ctx, indexer.Request{
			ProjectID: flagProject,
			Root:      root,
			Files:     flagFiles,
			Model:     flagModel,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexed %s into project %d in %s\n", root, flagProject, res.Duration.Round(time.Millisecond))
		fmt.Fprintf(out, "  Run:       %s\n", res.RunID)
		fmt.Fprintf(out, "  Files:     %d\n", res.FilesIndexed)
		fmt.Fprintf(out, "  Chunks:    %d written, %d replaced\n", res.ChunksWritten, res.Deleted)
		fmt.Fprintf(out, "  Embedding: %s (dim %d)\n", res.EmbeddingModel, res.EmbeddingDimension)
		if res.Analysis != nil {
			fmt.Fprintf(out, "  Analysis:  %s, %s, framework %s\n",
				res.Analysis.RepositoryType, res.Analysis.PrimaryLanguage, res.Analysis.FrameworkName())
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().Int64Var(&flagProject, "project", 0, "project id (required)")
	indexCmd.Flags().StringSliceVar(&flagFiles, "files", nil, "index only these paths, relative to <path>")
	indexCmd.Flags().StringVar(&flagModel, "model", "", "embedding model override")
	_ = indexCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(indexCmd)
}
