package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/repoindex/internal/searcher"
)

var (
	flagK          int
	flagPathPrefix string
	flagFormat     string
	flagMaxChars   int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Return the chunks nearest to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.searcher.Search(cmd.Context(), searcher.Request{
			ProjectID:  flagProject,
			Query:      strings.Join(args, " "),
			K:          flagK,
			PathPrefix: flagPathPrefix,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch flagFormat {
		case "prompt":
			fmt.Fprintln(out, searcher.FormatForPrompt(resp.Hits, flagMaxChars))
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resp.Hits)
		default:
			for i, h := range resp.Hits {
				fmt.Fprintf(out, "%2d. %s:%d-%d  dist=%.4f\n", i+1, h.Path, h.StartLine, h.EndLine, h.Distance)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int64Var(&flagProject, "project", 0, "project id (required)")
	searchCmd.Flags().IntVar(&flagK, "k", searcher.DefaultK, fmt.Sprintf("number of results (1-%d)", searcher.MaxK))
	searchCmd.Flags().StringVar(&flagPathPrefix, "path-prefix", "", "only return chunks whose path starts with this prefix")
	searchCmd.Flags().StringVar(&flagFormat, "format", "text", "output format: text, json or prompt")
	searchCmd.Flags().IntVar(&flagMaxChars, "max-chars", searcher.DefaultPromptChars, "character limit for --format prompt")
	_ = searchCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(searchCmd)
}
