package usecase

import (
	"context"
	"time"

	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

// GenerationClient wraps a provider so callers only ever see a typed
// Outcome; provider errors never cross this boundary.
type GenerationClient struct {
	llm        domain.Llm
	classifier Classifier
	timeout    time.Duration
}

func NewGenerationClient(llm domain.Llm, classifier Classifier, timeout time.Duration) *GenerationClient {
	return &GenerationClient{llm: llm, classifier: classifier, timeout: timeout}
}

func (g *GenerationClient) Generate(ctx context.Context, model, payload string) domain.Outcome {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.llm.GenerateContent(ctx, model, payload)
	outcome := g.classifier.Classify(text, err)

	logger := log.WithCtx(log.ContextWithModel(ctx, model)).With(
		zap.Int("payload_bytes", len(payload)),
		zap.Stringer("outcome", outcome.Kind),
		zap.Duration("elapsed", time.Since(start)),
	)
	if outcome.Cause != nil {
		logger.Warn("generation failed", zap.Error(outcome.Cause))
	} else {
		logger.Debug("generation completed")
	}
	return outcome
}
