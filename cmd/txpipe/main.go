// cmd/txpipe/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/pkg/network"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitCanceled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	reportError(output.DefaultLogger, err)
	os.Exit(exitCode(err))
}

// reportError prints err for the user. A cancellation is expected and gets
// a plain line instead of a red error.
func reportError(logger output.LoggerInterface, err error) {
	if err == nil {
		return
	}
	if exitCode(err) == exitCanceled {
		fmt.Fprintf(logger.ErrWriter(), "Canceled: %v\n", err)
		if hint := output.GetRecoveryHint(err); hint != "" {
			fmt.Fprintf(logger.ErrWriter(), "  %s\n", hint)
		}
		return
	}
	logger.PrintError(err)
}

// exitCode maps a command error to the process exit status. A user
// declining the signature, or an interrupt, exits like a shell-level Ctrl+C.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case network.IsUserRejected(err), errors.Is(err, context.Canceled):
		return exitCanceled
	default:
		return exitError
	}
}
