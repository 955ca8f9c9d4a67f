package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjoedt/docstore"
	"github.com/alexjoedt/docstore/internal/config"
	"github.com/alexjoedt/docstore/internal/logging"
	"github.com/alexjoedt/docstore/internal/server"
	"github.com/alexjoedt/docstore/internal/version"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath  string
	backend     string
	port        int
	dataDir     string
	debug       bool
	showVersion bool
}

// NewRootCmd creates the root command, which runs the server.
func NewRootCmd() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:   version.AppName,
		Short: version.Description,
		Long: fmt.Sprintf(`%s - %s

Clients push JSON documents with POST /data/:name and read them back with
GET /data/:name. Documents live in memory or as one file per key.
`, version.AppName, version.Description),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
				return nil
			}

			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cmd, cfg)
		},
	}

	rootCmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&flags.backend, "backend", "", `storage backend: "memory" or "file"`)
	rootCmd.Flags().IntVarP(&flags.port, "port", "p", 0, "listen port (overrides $PORT)")
	rootCmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "data directory for the file backend")
	rootCmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "enable debug logging")
	rootCmd.Flags().BoolVarP(&flags.showVersion, "version", "v", false, "show version information")

	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
		},
	}
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set explicitly, in that order.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("backend") {
		cfg.Storage.Backend = flags.backend
	}
	if fs.Changed("port") {
		cfg.Server.Port = flags.port
	}
	if fs.Changed("data-dir") {
		cfg.Storage.DataDir = flags.dataDir
	}
	if fs.Changed("debug") {
		cfg.Logging.Debug = flags.debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger, closer := logging.New(cfg.Logging, cmd.ErrOrStderr())
	defer closer.Close()

	store, err := server.OpenStore(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("opening store")
		return fmt.Errorf("opening store: %w", err)
	}
	if fs, ok := store.(*docstore.FileStore); ok {
		logger.Info().Str("data_dir", fs.Dir()).Msg("file store opened")
	}
	logger.Debug().Str("backend", cfg.Storage.Backend).Msg("store ready")

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		return err
	}

	printBanner(cmd.OutOrStdout(), cfg)

	return srv.ListenAndServe(ctx)
}
