package domain

import (
	"context"
	"time"
)

// MessageBroker defines the interface for message broker operations
type MessageBroker interface {
	// Publish sends a message to a specific topic/channel with a routing key
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens for messages on a specific topic/channel and routing key
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan Message, error)

	// Close closes the message broker connection
	Close() error
}

// Message represents a message received from the broker
type Message struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// TurnsTopic carries every turn appended to any conversation.
const TurnsTopic = "conversation.turns"

// TurnEvent is published once per appended turn, and once with Cleared set
// when a conversation is reset.
type TurnEvent struct {
	SessionID string    `json:"session_id"`
	Turn      *Turn     `json:"turn,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Cleared   bool      `json:"cleared,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
