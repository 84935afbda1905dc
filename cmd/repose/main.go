// File: cmd/repose/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/repose/cmd"
	"github.com/xkilldash9x/repose/internal/observability"
)

// main runs the repose command line with graceful shutdown on SIGINT and
// SIGTERM. A cancelled run exits cleanly; anything else exits non-zero.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
