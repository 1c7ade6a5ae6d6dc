package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satriahrh/synapse/adapters/http"
	"github.com/satriahrh/synapse/adapters/llm"
	"github.com/satriahrh/synapse/adapters/message_broker"
	"github.com/satriahrh/synapse/adapters/speech"
	"github.com/satriahrh/synapse/adapters/storage/memory"
	"github.com/satriahrh/synapse/adapters/token"
	"github.com/satriahrh/synapse/adapters/tts"
	"github.com/satriahrh/synapse/adapters/websocket"
	"github.com/satriahrh/synapse/config"
	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/usecase"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

func main() {
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		// ErrMissingCredential lands here too: nothing is served without a key.
		log.With().Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := newLlm(ctx, cfg)
	if err != nil {
		log.With().Fatal("failed to create llm client", zap.Error(err))
	}

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	gen := usecase.NewGenerationClient(model, usecase.NewClassifier(cfg.RateLimitKeywords), cfg.GenerationTimeout)
	assembler := usecase.Assembler{Policy: contextPolicy(cfg.ContextPolicy), Window: cfg.HistoryWindow}
	chat := usecase.NewChatService(gen, assembler, cfg.Models).WithBroker(broker)
	sessions := usecase.NewSessionManager(memory.NewConversationFactory(), cfg.DefaultModel)

	tokens, err := token.NewSessionTokens(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		log.With().Fatal("failed to create session tokens", zap.Error(err))
	}

	wsServer := websocket.NewServer(chat, sessions, tokens, broker)
	if err := wsServer.Run(ctx); err != nil {
		log.With().Fatal("failed to start websocket server", zap.Error(err))
	}

	e := http.NewServer()
	e.GET("/ws", wsServer.Handler)

	sessionGroup := http.NewChatHandler(chat, sessions, tokens).WithConnections(wsServer.GetHub()).Register(e.Group("/api/v1"))

	if cfg.VoiceEnabled {
		googleSpeech, err := speech.NewGoogleSpeech(ctx, cfg.VoiceLanguage)
		if err != nil {
			log.With().Fatal("failed to create speech client", zap.Error(err))
		}
		defer googleSpeech.Close()

		googleTTS, err := tts.NewGoogleTTS(ctx, cfg.VoiceLanguage)
		if err != nil {
			log.With().Fatal("failed to create text-to-speech client", zap.Error(err))
		}
		defer googleTTS.Close()

		http.NewVoiceHandler(chat, googleSpeech, googleTTS).Register(sessionGroup)
	}

	go sweepSessions(ctx, sessions, cfg.SessionTTL)

	go func() {
		log.With(
			zap.String("port", cfg.Port),
			zap.String("provider", cfg.LlmProvider),
			zap.String("default_model", cfg.DefaultModel),
			zap.Stringer("policy", assembler.Policy),
			zap.Bool("voice", cfg.VoiceEnabled),
		).Info("starting server")

		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.With().Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.With().Error("graceful shutdown failed", zap.Error(err))
	}
	log.With().Info("server stopped")
}

func newLlm(ctx context.Context, cfg *config.Config) (domain.Llm, error) {
	if cfg.LlmProvider == config.ProviderMock {
		return llm.NewMockLlm(), nil
	}
	return llm.NewGeminiClient(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey})
}

func contextPolicy(p config.ContextPolicy) usecase.ContextPolicy {
	if p == config.PolicyStateless {
		return usecase.StatelessPolicy
	}
	return usecase.TranscriptPolicy
}

func sweepSessions(ctx context.Context, sessions *usecase.SessionManager, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sessions.Sweep(ttl)
		case <-ctx.Done():
			return
		}
	}
}
