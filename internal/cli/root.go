package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"txfilter/internal/config"
	applog "txfilter/internal/log"
)

// app carries what every subcommand needs after PersistentPreRunE.
type app struct {
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *applog.Logger
}

// Execute runs the root command until it returns or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "txfilter",
		Short:         "Filter, total and ingest transactions",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			if err := LoadEnvFile(a.envFile); err != nil {
				return err
			}
			if a.logLevel != "" {
				if err := os.Setenv("LOG_LEVEL", a.logLevel); err != nil {
					return err
				}
			}
			cfg, err := LoadAndValidateConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = SetupLogger(cfg, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file to load (default: ./.env if present)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL: debug|info|warn|error")

	cmd.AddCommand(
		serveCmd(a),
		filterCmd(a),
		publishCmd(a),
		workerCmd(a),
		versionCmd(),
	)
	return cmd
}
