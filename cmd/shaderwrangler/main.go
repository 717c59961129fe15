package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"shaderwrangler/internal/cli"
)

// main canonicalizes all inputs into an Invocation before any run logic is
// invoked; cli.Run owns the exit code mapping.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
