// Package signals turns OS shutdown signals into context cancellation.
package signals

import (
	"context"
	"os"
	"os/signal"
	"slices"
)

// notifyContext is signal.NotifyContext; tests replace it.
var notifyContext = signal.NotifyContext

// ShutdownContext returns a context cancelled by the first shutdown signal.
// Call stop to release the signal handler; a second signal then kills the
// process the default way.
func ShutdownContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return notifyContext(parent, ShutdownSignals()...)
}

// ShutdownSignals returns the signals that trigger graceful shutdown.
func ShutdownSignals() []os.Signal {
	return slices.Clone(shutdownSignals)
}
