package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DachengChen/obsql/config"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create ~/.obsql/config.json",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file and a sample connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(config.Dir(), "config.json")
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.SaveAppConfig(config.DefaultAppConfig()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)

		// Seed connections.json with an editable local profile.
		store, err := config.NewConnectionStore()
		if err != nil {
			return err
		}
		if len(store.Connections) > 0 {
			return nil
		}
		local := config.DefaultConnection()
		local.Name = "local"
		store.Add(local)
		if err := store.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", filepath.Join(config.Dir(), "connections.json"))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config with API keys redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(redacted(*appCfg), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// redacted masks every API key that is set.
func redacted(cfg config.AppConfig) config.AppConfig {
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&cfg.AI.OpenAI.APIKey)
	mask(&cfg.AI.Anthropic.APIKey)
	mask(&cfg.AI.Gemini.APIKey)
	return cfg
}
