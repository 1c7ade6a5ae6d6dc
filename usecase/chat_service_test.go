package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/synapse/adapters/message_broker"
	"github.com/satriahrh/synapse/adapters/storage/memory"
	"github.com/satriahrh/synapse/domain"
)

var testModels = []string{"gemini-2.0-flash", "gemini-1.5-pro"}

func newTestService(llm domain.Llm, policy ContextPolicy) (*ChatService, *SessionManager) {
	gen := NewGenerationClient(llm, NewClassifier(nil), time.Second)
	svc := NewChatService(gen, Assembler{Policy: policy}, testModels)
	return svc, NewSessionManager(memory.NewConversationFactory(), testModels[0])
}

func roles(turns []domain.Turn) []domain.Turn {
	out := make([]domain.Turn, len(turns))
	for i, t := range turns {
		out[i] = domain.Turn{Role: t.Role, Content: t.Content}
	}
	return out
}

func TestChatService_SendSuccess(t *testing.T) {
	llm := &fakeLlm{text: "Gravity is..."}
	svc, sessions := newTestService(llm, TranscriptPolicy)
	session := sessions.Start()

	ex, err := svc.Send(context.Background(), session, "Explain gravity")
	require.NoError(t, err)

	assert.Equal(t, domain.Success, ex.Outcome)
	assert.Equal(t, "Gravity is...", ex.Assistant.Content)
	assert.Equal(t, []domain.Turn{
		{Role: domain.UserRole, Content: "Explain gravity"},
		{Role: domain.AssistantRole, Content: "Gravity is..."},
	}, roles(svc.History(session)))
	assert.Equal(t, "user: Explain gravity\nassistant:", llm.lastPayload())
}

func TestChatService_RateLimitBecomesAssistantTurn(t *testing.T) {
	svc, sessions := newTestService(&fakeLlm{err: errors.New("Rate limit exceeded")}, TranscriptPolicy)
	session := sessions.Start()

	ex, err := svc.Send(context.Background(), session, "hello")
	require.NoError(t, err)

	assert.Equal(t, domain.RateLimited, ex.Outcome)
	history := svc.History(session)
	require.Len(t, history, 2)
	assert.Equal(t, domain.AssistantRole, history[1].Role)
	assert.Equal(t, RateLimitNotice, history[1].Content)
}

func TestChatService_EmptyResponse(t *testing.T) {
	svc, sessions := newTestService(&fakeLlm{}, TranscriptPolicy)
	session := sessions.Start()

	ex, err := svc.Send(context.Background(), session, "hello")
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyResponse, ex.Outcome)
	assert.Equal(t, EmptyResponseNotice, ex.Assistant.Content)
}

func TestChatService_TranscriptCarriesPriorTurns(t *testing.T) {
	llm := &fakeLlm{text: "b"}
	svc, sessions := newTestService(llm, TranscriptPolicy)
	session := sessions.Start()

	_, err := svc.Send(context.Background(), session, "a")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), session, "c")
	require.NoError(t, err)

	assert.Equal(t, "user: a\nassistant: b\nuser: c\nassistant:", llm.lastPayload())
	assert.Len(t, svc.History(session), 4)
}

func TestChatService_StatelessSendsOnlyMessage(t *testing.T) {
	llm := &fakeLlm{text: "b"}
	svc, sessions := newTestService(llm, StatelessPolicy)
	session := sessions.Start()

	_, err := svc.Send(context.Background(), session, "a")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), session, "c")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, llm.payloads)
}

func TestChatService_RejectsBlankMessage(t *testing.T) {
	llm := &fakeLlm{text: "x"}
	svc, sessions := newTestService(llm, TranscriptPolicy)
	session := sessions.Start()

	_, err := svc.Send(context.Background(), session, "  \n")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	assert.Empty(t, svc.History(session))
	assert.Empty(t, llm.payloads)
}

func TestChatService_Clear(t *testing.T) {
	svc, sessions := newTestService(&fakeLlm{text: "x"}, TranscriptPolicy)
	session := sessions.Start()

	_, err := svc.Send(context.Background(), session, "a")
	require.NoError(t, err)

	svc.Clear(context.Background(), session)
	assert.Empty(t, svc.History(session))
	svc.Clear(context.Background(), session)
	assert.Empty(t, svc.History(session))
}

func TestChatService_SelectModel(t *testing.T) {
	llm := &fakeLlm{text: "x"}
	svc, sessions := newTestService(llm, TranscriptPolicy)
	session := sessions.Start()

	require.NoError(t, svc.SelectModel(context.Background(), session, "gemini-1.5-pro"))
	assert.Equal(t, "gemini-1.5-pro", session.Model())

	err := svc.SelectModel(context.Background(), session, "gpt-4")
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
	assert.Equal(t, "gemini-1.5-pro", session.Model())

	_, err = svc.Send(context.Background(), session, "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-1.5-pro"}, llm.models)
}

func TestChatService_ModelsIsACopy(t *testing.T) {
	svc, _ := newTestService(&fakeLlm{}, TranscriptPolicy)

	models := svc.Models()
	models[0] = "mutated"
	assert.Equal(t, testModels, svc.Models())
}

func TestChatService_PublishesTurnEvents(t *testing.T) {
	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	ctx := context.Background()
	events, err := broker.Subscribe(ctx, domain.TurnsTopic, "")
	require.NoError(t, err)

	svc, sessions := newTestService(&fakeLlm{text: "pong"}, TranscriptPolicy)
	svc.WithBroker(broker)
	session := sessions.Start()

	_, err = svc.Send(ctx, session, "ping")
	require.NoError(t, err)
	svc.Clear(ctx, session)

	var got []domain.TurnEvent
	for i := 0; i < 3; i++ {
		select {
		case msg := <-events:
			var ev domain.TurnEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &ev))
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	require.NotNil(t, got[0].Turn)
	assert.Equal(t, "ping", got[0].Turn.Content)
	require.NotNil(t, got[1].Turn)
	assert.Equal(t, "pong", got[1].Turn.Content)
	assert.Equal(t, "success", got[1].Outcome)
	assert.True(t, got[2].Cleared)
	for _, ev := range got {
		assert.Equal(t, session.ID, ev.SessionID)
	}
}
