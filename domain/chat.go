package domain

import (
	"errors"
	"time"
)

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

// Turn is one message of a conversation. Turns are never mutated after
// they have been appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the ordered history of turns owned by one session.
type Conversation interface {
	Append(turn Turn)
	Clear()
	// All returns a copy of the turns in insertion order.
	All() []Turn
}

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrUnknownModel    = errors.New("unknown model")
	ErrSessionNotFound = errors.New("session not found")
)
