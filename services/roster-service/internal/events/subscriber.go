package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/burakmert236/volei-list/common/errors"
	commonevents "github.com/burakmert236/volei-list/common/events"
	"github.com/burakmert236/volei-list/common/logger"
	"github.com/burakmert236/volei-list/common/natsjetstream"
)

type Resetter interface {
	Reset(ctx context.Context) (int, *apperrors.AppError)
}

type EventSubscriber struct {
	subscriber *natsjetstream.Subscriber
	resetter   Resetter
	logger     *logger.Logger
	consumers  []jetstream.ConsumeContext
}

func NewEventSubscriber(
	natsClient *natsjetstream.Client,
	resetter Resetter,
	logger *logger.Logger,
) *EventSubscriber {
	logger = logger.With("component", "event-subscriber")
	return &EventSubscriber{
		subscriber: natsjetstream.NewSubscriber(natsClient, logger),
		resetter:   resetter,
		logger:     logger,
	}
}

func (s *EventSubscriber) Start(ctx context.Context) error {
	s.logger.Info("Starting event subscriptions")

	if err := s.subscribeToResetRequests(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to reset requests: %w", err)
	}

	s.logger.Info("All event subscriptions started")
	return nil
}

func (s *EventSubscriber) Stop() {
	for _, consumer := range s.consumers {
		consumer.Stop()
	}
	s.consumers = nil
}

func (s *EventSubscriber) subscribeToResetRequests(ctx context.Context) error {
	cfg := natsjetstream.ConsumerConfig{
		StreamName:    commonevents.RosterEventsStream,
		ConsumerName:  "roster-service-reset-consumer",
		Durable:       "roster-service-reset",
		FilterSubject: commonevents.RosterResetRequested,
		AckPolicy:     "explicit",
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
	}

	s.logger.Info("Subscribing to reset requests",
		"stream", cfg.StreamName,
		"consumer", cfg.ConsumerName,
	)

	consumer, err := s.subscriber.Subscribe(ctx, cfg, s.handleRosterEvent)
	if err != nil {
		return err
	}
	s.consumers = append(s.consumers, consumer)
	return nil
}

func (s *EventSubscriber) handleRosterEvent(ctx context.Context, msg jetstream.Msg) error {
	return s.dispatch(ctx, msg.Subject(), s.requestSource(msg))
}

// requestSource reads the optional "requested_by" field of a structpb
// payload. Empty or undecodable payloads are still processed.
func (s *EventSubscriber) requestSource(msg jetstream.Msg) string {
	if len(msg.Data()) == 0 {
		return ""
	}

	var payload structpb.Struct
	if err := natsjetstream.UnmarshalProto(msg, &payload); err != nil {
		s.logger.Warn("Failed to decode roster event payload", "subject", msg.Subject(), "error", err)
		return ""
	}
	return payload.GetFields()["requested_by"].GetStringValue()
}

func (s *EventSubscriber) dispatch(ctx context.Context, subject, requestedBy string) error {
	s.logger.Debug("Received roster event", "subject", subject, "requested_by", requestedBy)

	switch subject {
	case commonevents.RosterResetRequested:
		return s.handleResetRequested(ctx, requestedBy)
	default:
		s.logger.Warn("Unknown roster event subject", "subject", subject)
		return nil
	}
}

func (s *EventSubscriber) handleResetRequested(ctx context.Context, requestedBy string) error {
	removed, err := s.resetter.Reset(ctx)
	if err != nil {
		s.logger.Error("Failed to reset roster on request", "error", err)
		return fmt.Errorf("reset error: %w", err)
	}

	s.logger.Info("Reset request processed", "removed", removed, "requested_by", requestedBy)
	return nil
}
