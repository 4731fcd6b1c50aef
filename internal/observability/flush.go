package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// FlushTelemetry pushes the registry to a Pushgateway (skipped when pushURL is empty)
// and flushes logs. Call once before process exit; the job does not live long enough
// to be scraped.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, pushURL, job string) error {
	var errs []error
	if pushURL != "" {
		pusher := push.New(pushURL, job).Gatherer(registry)
		if err := pusher.PushContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("push metrics: %w", err))
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("flush logs: %w", err))
		}
	}
	return errors.Join(errs...)
}
