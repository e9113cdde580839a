package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/channelboard"
	"github.com/jpalmerr/channelboard/config"
	"github.com/jpalmerr/channelboard/internal/logging"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console server",
	Long: `Start the Channelboard console server.

The server will:
  - Load configuration from the specified YAML file
  - Start refreshing channels from every configured backend
  - Serve the operator console on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  channelboard serve -c config.yaml
  channelboard serve --config /etc/channelboard/config.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("log-level", "", "override log.level from the config file")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	format := cfg.Log.Format
	if format == "" {
		format = "json"
	}

	logger, closeLogger, err := logging.New(logging.Config{
		Level:  level,
		Format: format,
		SeqURL: cfg.Log.SeqURL,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer closeLogger()

	logger.Info("config loaded",
		"backends", len(cfg.Backends),
		"grids", len(cfg.Grids),
	)

	opts, err := config.BuildOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build backends: %w", err)
	}

	console, err := channelboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create console: %w", err)
	}

	logger.Info("starting server",
		"port", console.Port(),
		"refresh_interval", console.RefreshInterval().String(),
		"auth_backend", console.AuthBackend().Name(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- console.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
