package nats

import (
	"context"

	"github.com/brojonat/supplywatch/service/alert"
)

// AlertDispatcher mirrors alerts onto JetStream as an alert.Dispatcher.
type AlertDispatcher struct {
	publisher Publisher
}

// NewAlertDispatcher wraps publisher.
func NewAlertDispatcher(publisher Publisher) *AlertDispatcher {
	return &AlertDispatcher{publisher: publisher}
}

// Name implements alert.Dispatcher.
func (d *AlertDispatcher) Name() string {
	return "nats"
}

// Dispatch implements alert.Dispatcher.
func (d *AlertDispatcher) Dispatch(ctx context.Context, a alert.Alert) error {
	return d.publisher.PublishAlert(ctx, FromAlert(a))
}
