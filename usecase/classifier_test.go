package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satriahrh/synapse/domain"
)

func TestClassifier_RateLimitKeywordsAnyCase(t *testing.T) {
	c := NewClassifier(nil)

	for _, msg := range []string{
		"Rate limit exceeded",
		"QUOTA exhausted",
		"Limit reached",
		"Error 429, Message: Resource has been exhausted (e.g. check quota).",
		"too many requests: rAtE",
	} {
		out := c.ClassifyError(msg, errors.New(msg))
		assert.Equal(t, domain.RateLimited, out.Kind, msg)
		assert.Equal(t, RateLimitNotice, out.Text, msg)
	}
}

func TestClassifier_GenericError(t *testing.T) {
	c := NewClassifier(nil)
	err := errors.New("connection refused")

	out := c.Classify("", err)
	assert.Equal(t, domain.GenericError, out.Kind)
	assert.Equal(t, "An error occurred: connection refused", out.Text)
	assert.Same(t, err, out.Cause)
}

func TestClassifier_EmptyResponse(t *testing.T) {
	c := NewClassifier(nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		out := c.Classify(text, nil)
		assert.Equal(t, domain.EmptyResponse, out.Kind)
		assert.Equal(t, EmptyResponseNotice, out.Text)
		assert.NoError(t, out.Cause)
	}
}

func TestClassifier_Success(t *testing.T) {
	out := NewClassifier(nil).Classify("Gravity is...", nil)
	assert.True(t, out.OK())
	assert.Equal(t, "Gravity is...", out.Text)
}

func TestClassifier_Total(t *testing.T) {
	c := NewClassifier(nil)
	inputs := []string{"", "x", "unavailable", "deadline exceeded", "ratelimit", "🙂", "LIMIT"}

	for _, in := range inputs {
		out := c.ClassifyError(in, errors.New(in))
		assert.Contains(t, []domain.OutcomeKind{domain.RateLimited, domain.GenericError}, out.Kind, in)
		assert.NotEmpty(t, out.Text, in)
	}
}

func TestClassifier_CustomKeywords(t *testing.T) {
	c := NewClassifier([]string{" Exhausted ", ""})

	assert.Equal(t, domain.RateLimited, c.ClassifyError("resource EXHAUSTED", nil).Kind)
	assert.Equal(t, domain.GenericError, c.ClassifyError("rate limit", nil).Kind)
}
