package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/memcontext-mcp/internal/config"
	"github.com/dshills/memcontext-mcp/internal/logging"
	"github.com/dshills/memcontext-mcp/internal/service"
)

// rootOptions holds the persistent flags
type rootOptions struct {
	configPath string
	workspace  string
	dbPath     string
	provider   string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "memcontext",
		Short:         "Hybrid search over workspace memory notes, served over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.memcontext/config.toml)")
	flags.StringVar(&opts.workspace, "workspace", "", "Workspace directory (default current directory)")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path")
	flags.StringVar(&opts.provider, "provider", "", "Embedding provider: jina, openai, local, none")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newServeCommand(opts),
		newSyncCommand(opts),
		newSearchCommand(opts),
		newStatusCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// loadConfig layers file, environment and flags
func (o *rootOptions) loadConfig() (*config.Config, error) {
	f, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	f.ApplyEnv(os.Getenv)
	f.ApplyOverrides(config.Overrides{
		WorkspaceDir: o.workspace,
		DBPath:       o.dbPath,
		Provider:     o.provider,
		LogLevel:     o.logLevel,
	})
	return f.Resolve(os.Getenv)
}

// open resolves configuration and opens the service. The returned closer
// releases both the service and the log file.
func (o *rootOptions) open(ctx context.Context) (*service.Service, *logging.Logger, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, File: cfg.LogFile})
	if err != nil {
		return nil, nil, nil, err
	}

	svc, err := service.Open(ctx, cfg, logger.Logger)
	if err != nil {
		_ = logger.Close()
		return nil, nil, nil, err
	}

	closer := func() {
		if err := svc.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close service")
		}
		_ = logger.Close()
	}
	return svc, logger, closer, nil
}
