package publisher

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/burakmert236/volei-list/common/errors"
	commonevents "github.com/burakmert236/volei-list/common/events"
	"github.com/burakmert236/volei-list/common/logger"
	"github.com/burakmert236/volei-list/common/models"
	"github.com/burakmert236/volei-list/common/natsjetstream"
)

// Publisher announces committed roster changes.
type Publisher interface {
	PublishRegistered(ctx context.Context, entry models.Entry) error
	PublishCancelled(ctx context.Context, cancellation models.Cancellation) error
	PublishReset(ctx context.Context, removed int, at time.Time) error
}

type protoPublisher interface {
	PublishProto(ctx context.Context, subject string, msg proto.Message) *apperrors.AppError
}

type EventPublisher struct {
	publisher protoPublisher
	logger    *logger.Logger
}

func NewEventPublisher(client *natsjetstream.Client, logger *logger.Logger) *EventPublisher {
	return newEventPublisher(natsjetstream.NewPublisher(client), logger)
}

func newEventPublisher(p protoPublisher, logger *logger.Logger) *EventPublisher {
	return &EventPublisher{
		publisher: p,
		logger:    logger.With("component", "event-publisher"),
	}
}

func (p *EventPublisher) PublishRegistered(ctx context.Context, entry models.Entry) error {
	return p.publish(ctx, commonevents.RosterRegistered, entryFields(entry))
}

// PublishCancelled emits the cancellation and, when someone moved up from
// the waitlist, a promotion event after it.
func (p *EventPublisher) PublishCancelled(ctx context.Context, cancellation models.Cancellation) error {
	if err := p.publish(ctx, commonevents.RosterCancelled, entryFields(cancellation.Removed)); err != nil {
		return err
	}

	if cancellation.Promoted == nil {
		return nil
	}

	fields := entryFields(*cancellation.Promoted)
	fields["replaces"] = cancellation.Removed.Name
	return p.publish(ctx, commonevents.RosterPromoted, fields)
}

func (p *EventPublisher) PublishReset(ctx context.Context, removed int, at time.Time) error {
	return p.publish(ctx, commonevents.RosterReset, map[string]any{
		"removed": removed,
		"at":      at.Format(time.RFC3339),
	})
}

func (p *EventPublisher) publish(ctx context.Context, subject string, fields map[string]any) error {
	event, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", subject, err)
	}

	if appErr := p.publisher.PublishProto(ctx, subject, event); appErr != nil {
		return fmt.Errorf("failed to publish %s event: %w", subject, appErr)
	}

	p.logger.Debug("Published roster event", "subject", subject)
	return nil
}

func entryFields(entry models.Entry) map[string]any {
	return map[string]any{
		"id":            entry.EntryId,
		"name":          entry.Name,
		"status":        string(entry.Status),
		"position":      entry.Position,
		"registered_at": entry.RegisteredAt.Format(time.RFC3339Nano),
	}
}

// NopPublisher is used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishRegistered(context.Context, models.Entry) error { return nil }

func (NopPublisher) PublishCancelled(context.Context, models.Cancellation) error { return nil }

func (NopPublisher) PublishReset(context.Context, int, time.Time) error { return nil }
