// Package main is the entry point for the channelboard CLI.
//
// Channelboard can be embedded as a library (SDK) or run as a standalone
// binary with YAML configuration. This CLI provides the standalone binary.
//
// Usage:
//
//	channelboard serve -c config.yaml    # Start the console
//	channelboard validate -c config.yaml # Validate configuration
//	channelboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "channelboard",
	Short: "An operator console for integration engine channels",
	Long: `Channelboard is an operator console for integration engines.

Operators log in with their engine credentials and get a live,
filterable and sortable table of every channel across the configured
engines, with status badges and per-engine error banners.

Quick start:
  1. Create a config file (channelboard.yaml)
  2. Run: channelboard serve -c channelboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  refresh_interval: 30s
  backends:
    - name: Production
      url: https://oie.example.com:8443
      username: svc-console
      password: ${OIE_PASSWORD}`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this channelboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "channelboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
