// Package main is the entry point for the skctl CLI.
// The CLI searches imagery, extracts images, runs detections and decodes
// SKI archives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"skctl/cmd/skctl/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
