// Package main is the entry point for the sentinel CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sentinel/pkg/protocol"
)

// Exit codes.
const (
	exitError    = 1
	exitRejected = 2 // the backend rejected or never received an execute call
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error returned by a command onto the process exit status.
func exitCode(err error) int {
	var ce *protocol.CommandError
	if errors.As(err, &ce) {
		return exitRejected
	}
	return exitError
}
