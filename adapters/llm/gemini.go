package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/satriahrh/synapse/domain"
)

type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the Gemini endpoint; empty uses the default.
	BaseURL    string
	APIVersion string
}

type GeminiClient struct {
	client *genai.Client
}

var _ domain.Llm = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("creating genai client: api key is empty")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1"
	}

	client, err := genai.NewClient(
		ctx,
		&genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
			HTTPOptions: genai.HTTPOptions{
				BaseURL:    cfg.BaseURL,
				APIVersion: cfg.APIVersion,
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// GenerateContent sends payload as a single user content. Multi-turn
// context, if any, is already serialized into payload.
func (g *GeminiClient) GenerateContent(ctx context.Context, model string, payload string) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		model,
		genai.Text(payload),
		nil,
	)
	if err != nil {
		return "", &domain.ProviderError{Message: providerMessage(err), Err: err}
	}
	if resp == nil {
		return "", nil
	}

	return resp.Text(), nil
}

// providerMessage extracts what Gemini said. API errors carry a message from
// the server; transport failures are reduced to their innermost cause.
func providerMessage(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Status != "" {
			return apiErr.Status
		}
		return fmt.Sprintf("status %d", apiErr.Code)
	}

	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
