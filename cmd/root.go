// Package cmd contains all Cobra commands for obsql.
//
// Running `obsql` with no arguments starts the interactive composer. The
// web page and generate endpoint are served by `obsql serve`; `obsql
// compose` is the headless variant for scripts.
package cmd

import (
	"fmt"

	"github.com/DachengChen/obsql/applog"
	"github.com/DachengChen/obsql/config"
	"github.com/DachengChen/obsql/tui"
	"github.com/spf13/cobra"
)

var (
	// appCfg is loaded once per invocation, before any command runs.
	appCfg *config.AppConfig

	endpointFlag string
	connFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "obsql",
	Short: "OceanBase SQL composer: describe a query, get SQL",
	Long: `obsql turns a table schema and a plain-language description into
OceanBase SQL queries.

  • Terminal composer with streamed results and copy-to-clipboard
  • Web page and streaming /api/generate endpoint (obsql serve)
  • OpenAI, Anthropic, Gemini and Ollama backends
  • Schema import from saved PostgreSQL connections, optionally over SSH

Run 'obsql' to start the composer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAppConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		appCfg = cfg
		if _, err := applog.Init(cfg.Log); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: file logging disabled: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		applog.Close()
	},
	// Running with no subcommand launches the TUI.
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.NewConnectionStore()
		if err != nil {
			return fmt.Errorf("failed to load connections: %w", err)
		}
		if connFlag != "" {
			if _, ok := store.Get(connFlag); !ok {
				return fmt.Errorf("unknown connection %q", connFlag)
			}
		}
		applog.Event("tui", "start", "endpoint", composeEndpoint(), "conn", connFlag)
		return tui.Start(tui.Options{
			AppConfig: appCfg,
			Store:     store,
			Endpoint:  endpointFlag,
			ConnName:  connFlag,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpointFlag, "endpoint", "", "generate endpoint URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&connFlag, "conn", "", "saved connection used for schema import")
}

// composeEndpoint is the --endpoint flag, else the configured endpoint.
func composeEndpoint() string {
	if endpointFlag != "" {
		return endpointFlag
	}
	return appCfg.Composer.Endpoint
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
