package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode is 0 on a clean stop, 2 for configuration and usage errors and 1
// for everything else, device faults in particular, so the supervisor
// restarts the bridge.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	fmt.Fprintln(os.Stderr, err)
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

type configError struct {
	err error
}

func (e *configError) Error() string { return "config: " + e.err.Error() }

func (e *configError) Unwrap() error { return e.err }
