package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/DachengChen/obsql/ai"
	"github.com/DachengChen/obsql/applog"
	"github.com/DachengChen/obsql/composer"
	"github.com/DachengChen/obsql/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveProvider string
	serveModel    string
	serveLogErr   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the composer page and the streaming generate endpoint",
	Long: `Serve the web composer on / and stream generated SQL from
POST /api/generate. Prometheus metrics are exposed on /metrics.

The backend is chosen by ai.provider in ~/.obsql/config.json or by
--provider; API keys are read from the environment.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appCfg
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveProvider != "" {
			cfg.AI.Provider = serveProvider
		}
		if serveModel != "" {
			cfg.AI.SetModel(serveModel)
		}

		provider, err := ai.NewProvider(cfg.AI)
		if err != nil {
			return err
		}
		if serveLogErr {
			applog.Use(applog.New(cfg.Log, cmd.ErrOrStderr()))
		}
		logger := applog.Logger()
		handler, err := server.NewHandler(server.Dependencies{
			Logger:         logger,
			Provider:       provider,
			Mode:           composer.ModeFor(cfg.Composer.SnippetMode),
			MaxPromptBytes: cfg.Server.MaxPromptBytes,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applog.Info("serve: addr=%s provider=%s mode=%s", cfg.Server.Addr, provider.Name(), cfg.Composer.SnippetMode)
		fmt.Fprintf(cmd.OutOrStdout(), "obsql serving on %s (provider: %s)\n", cfg.Server.Addr, provider.Name())
		return server.Run(ctx, cfg.Server, handler, logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :3000)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "generation backend: "+fmt.Sprint(ai.SupportedProviders))
	serveCmd.Flags().StringVar(&serveModel, "model", "", "model for the selected provider")
	serveCmd.Flags().BoolVar(&serveLogErr, "log-stderr", false, "log to stderr instead of the log file")
	rootCmd.AddCommand(serveCmd)
}
