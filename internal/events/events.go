// Package events publishes domain events (registrations, status changes,
// referral rewards) to an observability sink.
//
// Services publish through Emit, which logs a failed publish and never
// returns it: publish failures never change results. Publishing is
// synchronous, so a slow sink does add latency; the Kafka writer bounds it
// with a short write timeout and few attempts.
package events

import (
	"context"
	"log/slog"
	"time"
)

// Event types.
const (
	TypeUserRegistered    = "user.registered"
	TypeUserStatusChanged = "user.status_changed"
	TypeReferralRewarded  = "referral.rewarded"
)

// Event is the payload written to every sink. UserID doubles as the Kafka
// message key, so all events for one member land on the same partition.
type Event struct {
	Type       string         `json:"type"`
	UserID     string         `json:"userId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// New builds an event stamped with the current UTC time.
func New(eventType, userID string, attrs map[string]any) Event {
	return Event{
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Attrs:      attrs,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit publishes e and logs, rather than returns, any failure.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Error("failed to publish event",
			slog.String("type", e.Type),
			slog.String("userId", e.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// LogPublisher writes events to a slog.Logger. It is the sink used when no
// Kafka brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	attrs := []any{
		slog.String("type", e.Type),
		slog.String("userId", e.UserID),
		slog.Time("occurredAt", e.OccurredAt),
	}
	for k, v := range e.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	p.logger.InfoContext(ctx, "event", attrs...)
	return nil
}
