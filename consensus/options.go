package consensus

import (
	"io"
	"log/slog"
)

type coordinatorOption func(*Coordinator)

// WithMaliciousThreshold sets the trust score at or below which a node's vote
// is excluded from its chain's tally.
func WithMaliciousThreshold(threshold float64) coordinatorOption {
	return func(c *Coordinator) {
		c.maliciousThreshold = threshold
	}
}

// WithTrustDelta sets the per-round trust reward and penalty.
func WithTrustDelta(delta float64) coordinatorOption {
	return func(c *Coordinator) {
		c.trustDelta = delta
	}
}

// WithLogger sets the structured logger used for round tracing.
func WithLogger(logger *slog.Logger) coordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an observer notified after each committed round.
func WithObserver(o RoundObserver) coordinatorOption {
	return func(c *Coordinator) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithParallelTally lets the chains tally their votes concurrently. The
// weighted aggregation still runs in chain order.
func WithParallelTally(enabled bool) coordinatorOption {
	return func(c *Coordinator) {
		c.parallelTally = enabled
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
