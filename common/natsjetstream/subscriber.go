package natsjetstream

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"google.golang.org/protobuf/proto"

	"github.com/burakmert236/volei-list/common/logger"
)

type Subscriber struct {
	client *Client
	logger *logger.Logger
}

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

func NewSubscriber(client *Client, log *logger.Logger) *Subscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &Subscriber{client: client, logger: log}
}

// Subscribe starts consuming. Messages whose handler fails are nak'ed and
// redelivered up to MaxDeliver times. Stop the returned context to end
// consumption.
func (s *Subscriber) Subscribe(ctx context.Context, cfg ConsumerConfig, handler MessageHandler) (jetstream.ConsumeContext, error) {
	consumer, err := s.client.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, buildConsumerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	return consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg); err != nil {
			s.logger.Error("Error handling message", "subject", msg.Subject(), "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
}

func buildConsumerConfig(cfg ConsumerConfig) jetstream.ConsumerConfig {
	consumerConfig := jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.Durable,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
	}

	switch cfg.AckPolicy {
	case "none":
		consumerConfig.AckPolicy = jetstream.AckNonePolicy
	case "all":
		consumerConfig.AckPolicy = jetstream.AckAllPolicy
	default:
		consumerConfig.AckPolicy = jetstream.AckExplicitPolicy
	}

	return consumerConfig
}

func UnmarshalProto(msg jetstream.Msg, pb proto.Message) error {
	return proto.Unmarshal(msg.Data(), pb)
}
