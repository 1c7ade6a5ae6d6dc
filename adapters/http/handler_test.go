package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/synapse/adapters/storage/memory"
	"github.com/satriahrh/synapse/adapters/token"
	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/usecase"
)

type scriptedLlm struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (s *scriptedLlm) GenerateContent(ctx context.Context, model, payload string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.text, s.err
}

type testServer struct {
	e        *echo.Echo
	llm      *scriptedLlm
	sessions *usecase.SessionManager
	tokens   *token.SessionTokens
	chat     *usecase.ChatService
	session  *echo.Group
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	llm := &scriptedLlm{text: "Gravity is..."}
	models := []string{"gemini-2.0-flash", "gemini-1.5-pro"}
	gen := usecase.NewGenerationClient(llm, usecase.NewClassifier(nil), time.Second)
	chat := usecase.NewChatService(gen, usecase.Assembler{Policy: usecase.TranscriptPolicy}, models)
	sessions := usecase.NewSessionManager(memory.NewConversationFactory(), models[0])
	tokens, err := token.NewSessionTokens("test-secret", time.Hour)
	require.NoError(t, err)

	e := NewServer()
	session := NewChatHandler(chat, sessions, tokens).Register(e.Group("/api/v1"))

	return &testServer{e: e, llm: llm, sessions: sessions, tokens: tokens, chat: chat, session: session}
}

func (s *testServer) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createSession(t *testing.T) createSessionResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

type fixedConnections int

func (n fixedConnections) ClientCount() int { return int(n) }

func TestHealthCheck_ReportsConnections(t *testing.T) {
	s := newTestServer(t)
	s.createSession(t)

	e := NewServer()
	NewChatHandler(s.chat, s.sessions, s.tokens).WithConnections(fixedConnections(3)).Register(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Sessions    int `json:"sessions"`
		Connections int `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Sessions)
	assert.Equal(t, 3, out.Connections)
}

func TestListModels(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/models", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out modelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-pro"}, out.Models)
	assert.Equal(t, "gemini-2.0-flash", out.Default)
}

func TestCreateSessionAndSendMessage(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t)
	assert.Equal(t, "Bearer", created.Type)
	assert.Equal(t, "gemini-2.0-flash", created.Model)

	rec := s.do(t, http.MethodPost, "/api/v1/session/messages", created.Token, `{"text":"Explain gravity"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sent SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "success", sent.Outcome)
	assert.Equal(t, domain.UserRole, sent.UserTurn.Role)
	assert.Equal(t, "Explain gravity", sent.UserTurn.Content)
	assert.Equal(t, "Gravity is...", sent.AssistantTurn.Content)

	rec = s.do(t, http.MethodGet, "/api/v1/session/messages", created.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history messagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Turns, 2)
	assert.Equal(t, "Explain gravity", history.Turns[0].Content)
	assert.Equal(t, "Gravity is...", history.Turns[1].Content)
}

func TestSendMessage_RateLimitedIsStillOK(t *testing.T) {
	s := newTestServer(t)
	s.llm.err = errors.New("Rate limit exceeded")
	created := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/messages", created.Token, `{"text":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var sent SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "rate_limited", sent.Outcome)
	assert.Equal(t, usecase.RateLimitNotice, sent.AssistantTurn.Content)
}

func TestSendMessage_BlankText(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/messages", created.Token, `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.llm.calls)
}

func TestSessionRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/session/messages", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/session/messages", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session/messages", nil)
	req.Header.Set(echo.HeaderAuthorization, "Token abc")
	w := httptest.NewRecorder()
	s.e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestServer(t)
	a := s.createSession(t)
	b := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/messages", a.Token, `{"text":"only a"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/session/messages", b.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var history messagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Empty(t, history.Turns)
}

func TestClearMessagesTwice(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/v1/session/messages", created.Token, `{"text":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodDelete, "/api/v1/session/messages", created.Token, "")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/v1/session", created.Token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var info sessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, 0, info.Turns)
	}
}

func TestSelectModel(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t)

	rec := s.do(t, http.MethodPut, "/api/v1/session/model", created.Token, `{"model":"gemini-1.5-pro"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gemini-1.5-pro")

	rec = s.do(t, http.MethodPut, "/api/v1/session/model", created.Token, `{"model":"unknown"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/session", created.Token, "")
	var info sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "gemini-1.5-pro", info.Model)
}

func TestEndSession(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t)
	require.Equal(t, 1, s.sessions.Count())

	rec := s.do(t, http.MethodDelete, "/api/v1/session", created.Token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.sessions.Count())

	rec = s.do(t, http.MethodGet, "/api/v1/session/messages", created.Token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
