// File: cmd/walletctl/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/walletctl/cmd"
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		stop()
		// An interrupt while holding the browser open is a clean exit.
		if errors.Is(err, context.Canceled) {
			osExit(0)
		}
		osExit(1)
	}
}
