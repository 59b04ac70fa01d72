package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/ragescanner/internal/config"
)

var configForce bool

// configCmd groups the configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a configuration file with default values",
	Example: `  ragescanner config init
  ragescanner config init /etc/ragescanner/config.yaml --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the configuration file,
environment variables and flags have been applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Keep key hashes out of the output
		cfg.API.APIKeys = nil

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}
