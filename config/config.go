// Package config loads the service configuration from a .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

// ErrMissingCredential is fatal: the service must not accept input without
// an API key for the configured provider.
var ErrMissingCredential = errors.New("GEMINI_API_KEY is required in environment; create a .env file with GEMINI_API_KEY")

type ContextPolicy string

const (
	PolicyStateless  ContextPolicy = "stateless"
	PolicyTranscript ContextPolicy = "transcript"
)

const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

type Config struct {
	Port string

	LlmProvider  string
	GeminiAPIKey string
	DefaultModel string
	Models       []string

	ContextPolicy     ContextPolicy
	HistoryWindow     int
	RateLimitKeywords []string
	GenerationTimeout time.Duration

	SessionSecret string
	SessionTTL    time.Duration

	VoiceEnabled  bool
	VoiceLanguage string
}

// Load reads .env (if present) and then the environment. Values already set
// in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := gotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from the environment only.
func FromEnv() (*Config, error) {
	var p envParser
	cfg := &Config{
		Port:              envOrDefault("SYNAPSE_PORT", "8080"),
		LlmProvider:       strings.ToLower(envOrDefault("SYNAPSE_LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		DefaultModel:      envOrDefault("SYNAPSE_DEFAULT_MODEL", "gemini-2.0-flash"),
		Models:            envListOrDefault("SYNAPSE_MODELS", []string{"gemini-2.0-flash", "gemini-2.0-flash-lite", "gemini-1.5-flash", "gemini-1.5-pro"}),
		ContextPolicy:     ContextPolicy(strings.ToLower(envOrDefault("SYNAPSE_CONTEXT_POLICY", string(PolicyTranscript)))),
		HistoryWindow:     p.int("SYNAPSE_HISTORY_WINDOW", 0),
		RateLimitKeywords: envListOrDefault("SYNAPSE_RATE_LIMIT_KEYWORDS", []string{"quota", "rate", "limit"}),
		GenerationTimeout: p.duration("SYNAPSE_GENERATION_TIMEOUT", 60*time.Second),
		SessionSecret:     os.Getenv("SYNAPSE_SESSION_SECRET"),
		SessionTTL:        p.duration("SYNAPSE_SESSION_TTL", 24*time.Hour),
		VoiceEnabled:      p.bool("SYNAPSE_VOICE_ENABLED", false),
		VoiceLanguage:     envOrDefault("SYNAPSE_VOICE_LANGUAGE", "en-US"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LlmProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return ErrMissingCredential
		}
	case ProviderMock:
	default:
		return fmt.Errorf("SYNAPSE_LLM_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderMock, c.LlmProvider)
	}

	switch c.ContextPolicy {
	case PolicyStateless, PolicyTranscript:
	default:
		return fmt.Errorf("SYNAPSE_CONTEXT_POLICY must be %q or %q, got %q", PolicyStateless, PolicyTranscript, c.ContextPolicy)
	}

	if c.HistoryWindow < 0 {
		return fmt.Errorf("SYNAPSE_HISTORY_WINDOW must be >= 0, got %d", c.HistoryWindow)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("SYNAPSE_GENERATION_TIMEOUT must be positive, got %s", c.GenerationTimeout)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("SYNAPSE_MODELS must list at least one model")
	}

	found := false
	for _, m := range c.Models {
		if m == c.DefaultModel {
			found = true
			break
		}
	}
	if !found {
		c.Models = append([]string{c.DefaultModel}, c.Models...)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envParser reads typed variables and keeps the first parse failure, so a
// malformed value is reported instead of silently replaced by its default.
type envParser struct {
	err error
}

func (p *envParser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: invalid value %q: %w", key, value, err)
	}
}

func (p *envParser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *envParser) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func envListOrDefault(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
