package usecase

import (
	"context"
	"sync"
)

type fakeLlm struct {
	mu       sync.Mutex
	text     string
	err      error
	block    bool
	models   []string
	payloads []string
}

func (f *fakeLlm) GenerateContent(ctx context.Context, model string, payload string) (string, error) {
	f.mu.Lock()
	f.models = append(f.models, model)
	f.payloads = append(f.payloads, payload)
	text, err, block := f.text, f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return text, err
}

func (f *fakeLlm) lastPayload() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return ""
	}
	return f.payloads[len(f.payloads)-1]
}
