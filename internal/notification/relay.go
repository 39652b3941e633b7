package notification

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/protocol"
)

// EventSource is satisfied by *queue.Consumer.
type EventSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// EventNotifier is satisfied by *SlackNotifier.
type EventNotifier interface {
	Notify(ctx context.Context, event *protocol.AlertEvent) error
}

// Relay forwards alert events from Kafka to a notifier. Offsets are only
// committed after the notifier succeeds; undecodable messages are committed
// and dropped.
type Relay struct {
	source   EventSource
	notifier EventNotifier
	logger   *zap.Logger
}

func NewRelay(source EventSource, notifier EventNotifier, logger *zap.Logger) *Relay {
	return &Relay{source: source, notifier: notifier, logger: logger}
}

// Run consumes until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	for {
		msg, err := r.source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("Failed to consume message", zap.Error(err))
			continue
		}
		r.handle(ctx, msg)
	}
}

func (r *Relay) handle(ctx context.Context, msg kafka.Message) {
	event, err := protocol.DecodeAlertEvent(msg.Value)
	if err != nil {
		r.logger.Error("Failed to decode alert event, skipping",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		r.commit(ctx, msg)
		return
	}

	if err := r.notifier.Notify(ctx, event); err != nil {
		if errors.Is(err, ErrSlackNotConfigured) {
			r.commit(ctx, msg)
			return
		}
		// Not committed; the event is redelivered after a restart or rebalance.
		r.logger.Error("Failed to relay alert event",
			zap.Int64("alert_id", event.AlertID),
			zap.Int64("site_id", event.SiteID),
			zap.Error(err),
		)
		return
	}

	r.logger.Info("Alert event relayed",
		zap.Int64("alert_id", event.AlertID),
		zap.String("alert_type", event.AlertType),
		zap.String("severity", event.Severity),
	)
	r.commit(ctx, msg)
}

func (r *Relay) commit(ctx context.Context, msg kafka.Message) {
	if err := r.source.Commit(ctx, msg); err != nil {
		r.logger.Error("Failed to commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}
