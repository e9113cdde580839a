package main

import (
	"fmt"

	"github.com/jpalmerr/channelboard"
	"github.com/jpalmerr/channelboard/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a Channelboard configuration file without starting the server.

This command parses the YAML, expands environment variables, validates
all fields and builds the console, so unknown columns or a missing auth
backend are reported too. Useful for CI/CD pipelines or pre-deployment
checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  channelboard validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	opts, err := config.BuildOptions(cfg, nil)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	console, err := channelboard.New(opts...)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Backends)
	total := len(console.Backends())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:             %d\n", console.Port())
	fmt.Fprintf(out, "  Refresh interval: %s\n", console.RefreshInterval())
	fmt.Fprintf(out, "  Auth backend:     %s\n", console.AuthBackend().Name())
	fmt.Fprintf(out, "  Backends:         %d direct + %d from grids = %d total\n",
		direct, total-direct, total)

	return nil
}
