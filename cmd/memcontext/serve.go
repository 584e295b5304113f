package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/memcontext-mcp/internal/mcp"
	"github.com/dshills/memcontext-mcp/internal/storage"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, logger, closer, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			logger.Info().
				Str("version", version).
				Str("build_mode", storage.BuildMode).
				Str("driver", storage.DriverName).
				Bool("vector_extension", storage.VectorExtensionAvailable).
				Msg("memcontext MCP server starting")

			server := mcp.NewServer(svc, version, logger.Logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// stdin closing ends the session
				defer cancel()
				return server.Serve(ctx)
			})
			if svc.Config().Watch && !noWatch {
				g.Go(func() error { return svc.Watch(ctx) })
			}

			err = g.Wait()
			logger.Info().Msg("server stopped")
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the workspace for changes")
	return cmd
}
