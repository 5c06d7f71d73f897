// Package events publishes domain events about imports and finding edits.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"actionplan/pkg/requestcontext"
)

// Type names a domain event.
type Type string

const (
	EnterpriseImported Type = "enterprise.imported"
	FindingUpdated     Type = "finding.updated"
	AttachmentStored   Type = "attachment.stored"
)

// Event is the envelope written to the event stream. Subject is the COID for
// imports and the finding ID otherwise; it is also the partition key.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       Type              `json:"type"`
	Subject    string            `json:"subject"`
	RequestID  string            `json:"request_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New builds an event stamped with the request ID and time carried by ctx.
func New(ctx context.Context, typ Type, subject string, attrs map[string]string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		Subject:    subject,
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx).UTC(),
		Attributes: attrs,
	}
}

// LogPublisher writes events to a structured logger. It is the publisher used
// when no broker is configured and the fallback while Kafka is unavailable.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	args := []any{
		"event_id", e.ID,
		"event_type", string(e.Type),
		"subject", e.Subject,
		"request_id", e.RequestID,
		"occurred_at", e.OccurredAt,
	}
	for k, v := range e.Attributes {
		args = append(args, k, v)
	}
	p.logger.InfoContext(ctx, "domain event", args...)
	return nil
}
