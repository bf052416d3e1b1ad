package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openquant/backtester/config"
	"github.com/openquant/backtester/strategy"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a run config without executing it",
	RunE:  runValidate,
}

var validateConfigPath string

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", "", "path to run config (YAML or JSON) (required)")
	validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(validateConfigPath)
	if err != nil {
		return err
	}

	// Building the strategy catches unknown names and bad params too.
	if _, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params); err != nil {
		return err
	}

	fmt.Printf("%s: ok (%s on %v @ %s)\n", validateConfigPath, cfg.Strategy.Name, cfg.Symbols, cfg.Frequency)
	return nil
}
