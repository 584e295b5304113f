package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show memory index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closer, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			st, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}

			lastSynced := "never"
			if !st.LastSyncedAt.IsZero() {
				lastSynced = st.LastSyncedAt.Format(time.RFC3339)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "workspace:   %s\n", st.WorkspaceDir)
			fmt.Fprintf(out, "database:    %s (%.2f MB)\n", st.DBPath, st.IndexSizeMB)
			fmt.Fprintf(out, "documents:   %d\n", st.Documents)
			fmt.Fprintf(out, "chunks:      %d (%d vectors, %d zero)\n", st.Chunks, st.Vectors, st.ZeroVectors)
			fmt.Fprintf(out, "embedding:   %s %s (dim %d)\n", st.Provider, st.Model, st.Dimension)
			fmt.Fprintf(out, "lexical:     %s (available: %v)\n", st.LexicalEngine, st.LexicalAvailable)
			fmt.Fprintf(out, "dirty:       %v\n", st.Dirty)
			fmt.Fprintf(out, "last synced: %s\n", lastSynced)
			return nil
		},
	}
}
