package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// rootContext returns a context cancelled on SIGINT or SIGTERM so that
// in-flight dispatches stop and their steps are recorded as cancelled.
func rootContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
