package usecase

import (
	"fmt"
	"strings"

	"github.com/satriahrh/synapse/domain"
)

const (
	RateLimitNotice     = "⚠️ API rate limit reached. Please wait a moment before trying again."
	EmptyResponseNotice = "I couldn't generate a response. Please try again."
	genericErrorFormat  = "An error occurred: %s"
)

var DefaultRateLimitKeywords = []string{"quota", "rate", "limit"}

// Classifier maps the result of a generation call to an Outcome. It only
// looks at text, so it does not depend on the provider's error types.
type Classifier struct {
	RateLimitKeywords []string
}

func NewClassifier(keywords []string) Classifier {
	if len(keywords) == 0 {
		keywords = DefaultRateLimitKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return Classifier{RateLimitKeywords: lowered}
}

// Classify is total: every (text, err) pair maps to exactly one kind.
func (c Classifier) Classify(text string, err error) domain.Outcome {
	if err != nil {
		return c.ClassifyError(err.Error(), err)
	}
	// Whitespace-only text is not a usable reply.
	if strings.TrimSpace(text) == "" {
		return domain.Outcome{Kind: domain.EmptyResponse, Text: EmptyResponseNotice}
	}
	return domain.Outcome{Kind: domain.Success, Text: text}
}

func (c Classifier) ClassifyError(message string, cause error) domain.Outcome {
	lower := strings.ToLower(message)
	for _, k := range c.RateLimitKeywords {
		if strings.Contains(lower, k) {
			return domain.Outcome{Kind: domain.RateLimited, Text: RateLimitNotice, Cause: cause}
		}
	}
	return domain.Outcome{Kind: domain.GenericError, Text: fmt.Sprintf(genericErrorFormat, message), Cause: cause}
}
