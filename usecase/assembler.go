package usecase

import (
	"strings"

	"github.com/satriahrh/synapse/domain"
)

type ContextPolicy int

const (
	// StatelessPolicy sends only the newest user message.
	StatelessPolicy ContextPolicy = iota
	// TranscriptPolicy serializes every prior turn as "<role>: <content>"
	// and ends with a "user: <message>\nassistant:" completion cue.
	TranscriptPolicy
)

func (p ContextPolicy) String() string {
	if p == StatelessPolicy {
		return "stateless"
	}
	return "transcript"
}

// Assembler builds the payload sent to the model for a new user message.
type Assembler struct {
	Policy ContextPolicy
	// Window keeps only the last Window prior turns. Zero keeps all of them.
	Window int
}

func (a Assembler) Assemble(history []domain.Turn, message string) string {
	if a.Policy == StatelessPolicy {
		return message
	}

	if a.Window > 0 && len(history) > a.Window {
		history = history[len(history)-a.Window:]
	}

	var b strings.Builder
	for _, t := range history {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteByte('\n')
	}
	b.WriteString(string(domain.UserRole))
	b.WriteString(": ")
	b.WriteString(message)
	b.WriteByte('\n')
	b.WriteString(string(domain.AssistantRole))
	b.WriteByte(':')
	return b.String()
}
