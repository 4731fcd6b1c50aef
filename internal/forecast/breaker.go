package forecast

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// HostBreaker is shared by every source that talks to the same upstream host, so one
// dead host costs at most a couple of timeouts per run instead of one per model variant.
type HostBreaker = gobreaker.CircuitBreaker[struct{}]

// NewHostBreaker opens after failures consecutive failed calls. It stays open for the
// rest of a normal run.
func NewHostBreaker(name string, failures uint32, logger *zap.Logger) *HostBreaker {
	if failures == 0 {
		failures = 2
	}
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			}
		},
	})
}

// throughBreaker runs call via cb when cb is non-nil.
func throughBreaker(cb *HostBreaker, call func() error) error {
	if cb == nil {
		return call()
	}
	_, err := cb.Execute(func() (struct{}, error) {
		return struct{}{}, call()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}
