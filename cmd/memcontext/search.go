package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/memcontext-mcp/internal/searcher"
	"github.com/dshills/memcontext-mcp/pkg/types"
)

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var (
		maxResults int
		minScore   float64
		source     string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memory notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closer, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			req := searcher.Request{
				Query:      strings.Join(args, " "),
				MaxResults: maxResults,
				Source:     types.Source(source),
			}
			if cmd.Flags().Changed("min") {
				req.MinScore = &minScore
			}

			resp, err := svc.Search(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for _, r := range resp.Results {
				fmt.Fprintf(out, "[%.3f] %s:%d-%d\n", r.Score, r.Path, r.StartLine, r.EndLine)
				for _, line := range strings.Split(strings.TrimRight(r.Snippet, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxResults, "max", 0, "Maximum results (default from config)")
	cmd.Flags().Float64Var(&minScore, "min", searcher.DefaultMinScore, "Minimum score (default from config)")
	cmd.Flags().StringVar(&source, "source", "", "Restrict to a source collection")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response as JSON")
	return cmd
}
