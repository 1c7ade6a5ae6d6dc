package memory

import (
	"sync"

	"github.com/satriahrh/synapse/domain"
)

// Conversation is an in-process domain.Conversation. It lives exactly as
// long as the session that owns it.
type Conversation struct {
	mu    sync.RWMutex
	turns []domain.Turn
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// NewConversationFactory adapts NewConversation to the session manager's
// factory signature.
func NewConversationFactory() func() domain.Conversation {
	return func() domain.Conversation { return NewConversation() }
}

func (c *Conversation) Append(turn domain.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
}

func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = nil
}

func (c *Conversation) All() []domain.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}
