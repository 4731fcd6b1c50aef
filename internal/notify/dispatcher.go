package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/wind-alert/internal/observability"
)

// DispatchError is a failed delivery to one recipient.
type DispatchError struct {
	Recipient string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s: %v", e.Recipient, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Result counts delivery outcomes. Errors holds one *DispatchError per failure.
type Result struct {
	Sent    int
	Skipped int
	Failed  int
	Errors  []error
}

// Dispatcher sends a text to every recipient, one at a time.
type Dispatcher struct {
	sender     Sender
	recipients []Recipient
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewDispatcher returns a Dispatcher. limiter paces consecutive sends and may be nil.
func NewDispatcher(sender Sender, recipients []Recipient, limiter *rate.Limiter, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := make([]Recipient, len(recipients))
	copy(r, recipients)
	return &Dispatcher{sender: sender, recipients: r, limiter: limiter, logger: logger}
}

// Dispatch sends text to each recipient. Recipients without credentials are skipped
// and a failed send never stops the remaining ones.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) Result {
	var res Result
	for _, r := range d.recipients {
		if !r.Complete() {
			res.Skipped++
			observability.NotificationsTotal.WithLabelValues("skipped").Inc()
			d.logger.Info("recipient skipped: missing credentials", zap.String("recipient", r.Name))
			continue
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				d.fail(&res, r, err)
				continue
			}
		}

		if err := d.sender.Send(ctx, r, text); err != nil {
			d.fail(&res, r, err)
			continue
		}
		res.Sent++
		observability.NotificationsTotal.WithLabelValues("sent").Inc()
		d.logger.Info("notification sent", zap.String("recipient", r.Name))
	}
	return res
}

func (d *Dispatcher) fail(res *Result, r Recipient, err error) {
	res.Failed++
	res.Errors = append(res.Errors, &DispatchError{Recipient: r.Name, Err: err})
	observability.NotificationsTotal.WithLabelValues("failed").Inc()
	d.logger.Warn("notification failed", zap.String("recipient", r.Name), zap.Error(err))
}
