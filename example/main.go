package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/channelboard"
	"github.com/jpalmerr/channelboard/example/mockengine"
)

func main() {
	// two mock engines standing in for test and production
	for _, addr := range []string{":9998", ":9999"} {
		go func(addr string) {
			if err := http.ListenAndServe(addr, mockengine.New(mockengine.DefaultUsers).Handler()); err != nil {
				slog.Error("mock engine error", "addr", addr, "error", err)
			}
		}(addr)
	}
	time.Sleep(100 * time.Millisecond)

	backends, err := channelboard.NewBackendGrid("OIE",
		channelboard.WithURLTemplate("http://localhost:{{.port}}"),
		channelboard.WithDimensions(map[string][]string{
			"port": {"9998", "9999"},
		}),
		channelboard.WithGridCredentials("admin", "admin"),
	)
	if err != nil {
		slog.Error("failed to create backend grid", "error", err)
		os.Exit(1)
	}

	console, err := channelboard.New(
		channelboard.WithBackends(backends...),
		channelboard.WithRefreshInterval(5*time.Second),
		channelboard.WithPort(8080),
		channelboard.WithTitle("Channelboard Demo"),
		channelboard.WithColumnVisibility(map[string]bool{channelboard.ColumnDescription: true}),
		channelboard.WithSnapshotCallback(func(s channelboard.Snapshot) {
			if s.Error != nil {
				slog.Warn("refresh failed", "backend", s.Backend, "error", s.Error)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create console", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Channelboard Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 and log in as admin/admin")
	fmt.Println("  Backends: 2 mock engines (grid over ports 9998, 9999)")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := console.Start(ctx); err != nil {
		slog.Error("console error", "error", err)
		os.Exit(1)
	}
}
