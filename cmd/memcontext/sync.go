package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index memory notes in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closer, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			stats, err := svc.Sync(cmd.Context(), force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "outcome: %s\n", stats.Outcome)
			fmt.Fprintf(out, "indexed: %d  skipped: %d  removed: %d  failed: %d  unreadable: %d\n",
				stats.DocumentsIndexed, stats.DocumentsSkipped, stats.DocumentsRemoved, stats.DocumentsFailed, stats.PathsUnresolved)
			fmt.Fprintf(out, "chunks: %d  embedding failures: %d  duration: %s\n",
				stats.ChunksWritten, stats.EmbeddingFailures, stats.Duration)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Run a pass even when nothing is pending")
	return cmd
}
