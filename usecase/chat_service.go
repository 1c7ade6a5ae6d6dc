package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

type ChatService struct {
	gen       *GenerationClient
	assembler Assembler
	models    []string
	broker    domain.MessageBroker
	now       func() time.Time
}

// Exchange is the pair of turns produced by one Send.
type Exchange struct {
	User      domain.Turn
	Assistant domain.Turn
	Outcome   domain.OutcomeKind
}

func NewChatService(gen *GenerationClient, assembler Assembler, models []string) *ChatService {
	return &ChatService{
		gen:       gen,
		assembler: assembler,
		models:    append([]string(nil), models...),
		now:       time.Now,
	}
}

// WithBroker makes the service publish a domain.TurnEvent for every turn it
// appends.
func (s *ChatService) WithBroker(broker domain.MessageBroker) *ChatService {
	s.broker = broker
	return s
}

// Send records the user message, asks the model and records the reply.
// Generation failures are not errors: they come back as an assistant turn
// carrying the classified notice. The only error is a blank message.
func (s *ChatService) Send(ctx context.Context, session *Session, text string) (Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return Exchange{}, domain.ErrEmptyMessage
	}

	session.send.Lock()
	defer session.send.Unlock()

	// A started call always runs to completion so the assistant turn is
	// appended even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	model := session.Model()
	ctx = log.ContextWithModel(log.ContextWithSession(ctx, session.ID), model)
	conversation := session.Conversation()

	history := conversation.All()

	userTurn := domain.Turn{Role: domain.UserRole, Content: text, CreatedAt: s.now()}
	conversation.Append(userTurn)
	s.publish(ctx, domain.TurnEvent{SessionID: session.ID, Turn: &userTurn})

	payload := s.assembler.Assemble(history, text)
	outcome := s.gen.Generate(ctx, model, payload)

	assistantTurn := domain.Turn{Role: domain.AssistantRole, Content: outcome.Text, CreatedAt: s.now()}
	conversation.Append(assistantTurn)
	s.publish(ctx, domain.TurnEvent{SessionID: session.ID, Turn: &assistantTurn, Outcome: outcome.Kind.String()})

	log.WithCtx(ctx).Info("message exchanged",
		zap.Int("history_turns", len(history)),
		zap.Stringer("policy", s.assembler.Policy),
		zap.Stringer("outcome", outcome.Kind))

	return Exchange{User: userTurn, Assistant: assistantTurn, Outcome: outcome.Kind}, nil
}

func (s *ChatService) Clear(ctx context.Context, session *Session) {
	session.send.Lock()
	defer session.send.Unlock()

	ctx = log.ContextWithSession(ctx, session.ID)
	session.Conversation().Clear()
	s.publish(ctx, domain.TurnEvent{SessionID: session.ID, Cleared: true})

	log.WithCtx(ctx).Info("conversation cleared")
}

func (s *ChatService) History(session *Session) []domain.Turn {
	return session.Conversation().All()
}

func (s *ChatService) Models() []string {
	return append([]string(nil), s.models...)
}

func (s *ChatService) SelectModel(ctx context.Context, session *Session, model string) error {
	for _, m := range s.models {
		if m == model {
			session.setModel(model)
			log.WithCtx(log.ContextWithSession(ctx, session.ID)).Info("model selected", zap.String("model", model))
			return nil
		}
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownModel, model)
}

func (s *ChatService) publish(ctx context.Context, event domain.TurnEvent) {
	if s.broker == nil {
		return
	}
	event.Timestamp = s.now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.WithCtx(ctx).Error("failed to marshal turn event", zap.Error(err))
		return
	}
	// A full or closed broker must not affect the conversation.
	if err := s.broker.Publish(ctx, domain.TurnsTopic, "", payload); err != nil {
		log.WithCtx(ctx).Warn("failed to publish turn event", zap.Error(err))
	}
}
