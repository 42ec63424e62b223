package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// LogNotifier writes each event as a structured log line.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Str("session_id", event.AggregateID).
		RawJSON("payload", event.Payload).
		Msg("quote_event")
	return nil
}

// CounterNotifier increments a counter labelled by topic.
type CounterNotifier struct {
	Counter *prometheus.CounterVec
}

// Notify implements Notifier.
func (n CounterNotifier) Notify(_ context.Context, event Event) error {
	if n.Counter == nil {
		return nil
	}
	n.Counter.WithLabelValues(event.Topic).Inc()
	return nil
}
