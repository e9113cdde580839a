// Standalone mock engine for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/channelboard serve -c example/config.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jpalmerr/channelboard/example/mockengine"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	flag.Parse()

	fmt.Printf("Mock engine starting on %s (login admin/admin)\n", *addr)
	fmt.Println("Channel states cycle through: STARTED → PAUSED → STOPPED")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if err := http.ListenAndServe(*addr, mockengine.New(mockengine.DefaultUsers).Handler()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
