package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/repoindex/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tools on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		a.serveMetrics(ctx)

		srv, err := mcp.NewServer(mcp.Deps{
			Store:    a.store,
			Indexer:  a.indexer,
			Searcher: a.searcher,
			Locks:    a.locks,
		}, a.logger)
		if err != nil {
			return err
		}

		err = srv.Serve(ctx, os.Stdin, os.Stdout)
		if ctx.Err() != nil {
			a.logger.Info("shutting down", zap.Error(ctx.Err()))
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
