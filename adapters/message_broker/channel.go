package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

const topicBuffer = 100

// ChannelMessageBroker implements MessageBroker using Go channels. Each
// topic/routingKey pair is a single buffered channel, so it suits one
// subscriber per key.
type ChannelMessageBroker struct {
	topics map[string]chan domain.Message
	mu     sync.RWMutex
	closed bool
}

// NewChannelMessageBroker creates a new channel-based message broker
func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string]chan domain.Message),
	}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// channel returns the channel for key, creating it if needed. Callers hold
// b.mu for writing.
func (b *ChannelMessageBroker) channel(key string) chan domain.Message {
	ch, exists := b.topics[key]
	if !exists {
		ch = make(chan domain.Message, topicBuffer)
		b.topics[key] = ch
	}
	return ch
}

// Publish sends a message to a specific topic and routing key. It never
// blocks: a full topic returns an error.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("message broker is closed")
	}

	ch := b.channel(makeKey(topic, routingKey))
	msg := domain.Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	select {
	case ch <- msg:
		log.WithCtx(ctx).Debug("message published to topic",
			zap.String("topic", topic),
			zap.String("routingKey", routingKey),
			zap.Int("payload_size", len(message)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("topic channel is full: %s:%s", topic, routingKey)
	}
}

// Subscribe listens for messages on a specific topic and routing key
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	ch := b.channel(makeKey(topic, routingKey))
	log.WithCtx(ctx).Info("subscribed to topic", zap.String("topic", topic), zap.String("routingKey", routingKey))
	return ch, nil
}

// Close closes the message broker and all topic channels
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for key, ch := range b.topics {
		close(ch)
		log.With(zap.String("key", key)).Debug("closed topic channel")
	}
	b.topics = make(map[string]chan domain.Message)

	log.With().Info("message broker closed")
	return nil
}

// GetTopicCount returns the number of active topics
func (b *ChannelMessageBroker) GetTopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}

func (b *ChannelMessageBroker) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
