package domain

import "context"

// Llm abstracts any hosted text-generation provider.
type Llm interface {
	// GenerateContent sends payload to the given model and returns the raw
	// generated text. An empty string with a nil error means the provider
	// answered without usable text.
	GenerateContent(ctx context.Context, model string, payload string) (string, error)
}

// ProviderError carries the provider's own failure message. Its Error text
// is that message alone, without transport context such as URLs or call
// names, so it can be matched and shown to users as is.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
