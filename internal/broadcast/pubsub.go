package broadcast

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSub relays changes over a Google Cloud Pub/Sub topic. Each instance needs its own
// subscription so every instance receives every change.
type PubSub struct {
	topic        *pubsub.Topic
	subscription *pubsub.Subscription
	logger       *zap.Logger
}

// NewPubSub binds a topic and a subscription on client.
func NewPubSub(client *pubsub.Client, topicID, subscriptionID string, logger *zap.Logger) (*PubSub, error) {
	if client == nil {
		return nil, errors.New("pubsub broadcaster: client is required")
	}
	if topicID == "" || subscriptionID == "" {
		return nil, errors.New("pubsub broadcaster: topic and subscription are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSub{
		topic:        client.Topic(topicID),
		subscription: client.Subscription(subscriptionID),
		logger:       logger,
	}, nil
}

// Publish sends change and waits for the server acknowledgement.
func (p *PubSub) Publish(ctx context.Context, change Change) error {
	data, err := encode(change)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"cartId":   change.CartID,
			"instance": change.Instance,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub broadcaster: publish: %w", err)
	}
	return nil
}

// Run receives from the subscription until ctx is cancelled. Malformed messages are
// acknowledged and dropped.
func (p *PubSub) Run(ctx context.Context, fn Handler) error {
	err := p.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		defer msg.Ack()
		change, err := decode(msg.Data)
		if err != nil {
			p.logger.Warn("pubsub broadcaster: dropping message", zap.String("message_id", msg.ID), zap.Error(err))
			return
		}
		fn(ctx, change)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub broadcaster: receive: %w", err)
	}
	return ctx.Err()
}

// Ping checks that the topic exists.
func (p *PubSub) Ping(ctx context.Context) error {
	ok, err := p.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("pubsub broadcaster: topic: %w", err)
	}
	if !ok {
		return fmt.Errorf("pubsub broadcaster: topic %s not found", p.topic.ID())
	}
	return nil
}

// Close flushes pending publishes.
func (p *PubSub) Close() error {
	p.topic.Stop()
	return nil
}
