package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/supplywatch/service/metrics"
)

// Fanout delivers each alert to every configured dispatcher.
// A failing dispatcher does not stop delivery to the others.
type Fanout struct {
	dispatchers []Dispatcher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewFanout creates a Fanout. If m is nil, no metrics are recorded.
func NewFanout(m *metrics.Metrics, logger *slog.Logger, dispatchers ...Dispatcher) *Fanout {
	return &Fanout{
		dispatchers: dispatchers,
		metrics:     m,
		logger:      logger,
	}
}

// Name implements Dispatcher.
func (f *Fanout) Name() string {
	return "fanout"
}

// Dispatch sends a to every dispatcher and joins their errors.
func (f *Fanout) Dispatch(ctx context.Context, a Alert) error {
	var errs []error
	for _, d := range f.dispatchers {
		start := time.Now()
		err := d.Dispatch(ctx, a)
		f.metrics.RecordAlertDispatch(d.Name(), err, metrics.Since(start))

		if err != nil {
			f.logger.ErrorContext(ctx, "failed to dispatch alert",
				"channel", d.Name(),
				"signature", a.Signature,
				"wallet", a.Wallet,
				"mint", a.Mint,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}

		f.logger.InfoContext(ctx, "alert dispatched",
			"channel", d.Name(),
			"signature", a.Signature,
			"wallet", a.Wallet,
			"mint", a.Mint,
			"percentage", a.PercentageString(),
		)
	}
	return errors.Join(errs...)
}
