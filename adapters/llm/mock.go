package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriahrh/synapse/domain"
)

// MockLlm answers without any network call. It is meant for local runs of
// the service and the terminal client.
type MockLlm struct{}

var _ domain.Llm = MockLlm{}

func NewMockLlm() MockLlm {
	return MockLlm{}
}

func (MockLlm) GenerateContent(ctx context.Context, model string, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] You said: %q", model, lastUserLine(payload)), nil
}

// lastUserLine recovers the newest message from either a plain payload or a
// transcript ending in the "user: ...\nassistant:" cue.
func lastUserLine(payload string) string {
	trimmed := strings.TrimSuffix(payload, "\nassistant:")
	if trimmed == payload {
		return payload
	}
	if i := strings.LastIndex(trimmed, "user: "); i >= 0 {
		return trimmed[i+len("user: "):]
	}
	return trimmed
}
