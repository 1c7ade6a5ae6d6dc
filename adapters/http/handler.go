package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/satriahrh/synapse/adapters/token"
	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/usecase"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

const sessionKey = "session"

// ConnectionCounter reports live streaming connections, e.g. the WebSocket
// hub.
type ConnectionCounter interface {
	ClientCount() int
}

type ChatHandler struct {
	chat        *usecase.ChatService
	sessions    *usecase.SessionManager
	tokens      *token.SessionTokens
	connections ConnectionCounter
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Type      string `json:"type"`
	Model     string `json:"model"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	Model     string    `json:"model"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
}

type messagesResponse struct {
	Turns []domain.Turn `json:"turns"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type SendMessageResponse struct {
	UserTurn      domain.Turn `json:"user_turn"`
	AssistantTurn domain.Turn `json:"assistant_turn"`
	Outcome       string      `json:"outcome"`
	Transcript    string      `json:"transcript,omitempty"`
}

type selectModelRequest struct {
	Model string `json:"model"`
}

type modelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

func NewChatHandler(chat *usecase.ChatService, sessions *usecase.SessionManager, tokens *token.SessionTokens) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		sessions: sessions,
		tokens:   tokens,
	}
}

// WithConnections adds the live connection count to the health report.
func (h *ChatHandler) WithConnections(connections ConnectionCounter) *ChatHandler {
	h.connections = connections
	return h
}

// Register mounts the chat routes under api (usually /api/v1) and returns
// the session-scoped group so other handlers can share it.
func (h *ChatHandler) Register(api *echo.Group) *echo.Group {
	api.GET("/health", h.HealthCheck)
	api.GET("/models", h.ListModels)
	api.POST("/sessions", h.CreateSession)

	session := api.Group("/session")
	session.Use(h.SessionMiddleware)
	session.GET("", h.GetSession)
	session.DELETE("", h.EndSession)
	session.GET("/messages", h.ListMessages)
	session.POST("/messages", h.SendMessage)
	session.DELETE("/messages", h.ClearMessages)
	session.PUT("/model", h.SelectModel)

	return session
}

func (h *ChatHandler) HealthCheck(c echo.Context) error {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "synapse",
		"sessions":  h.sessions.Count(),
	}
	if h.connections != nil {
		health["connections"] = h.connections.ClientCount()
	}
	return c.JSON(http.StatusOK, health)
}

func (h *ChatHandler) ListModels(c echo.Context) error {
	models := h.chat.Models()
	return c.JSON(http.StatusOK, modelsResponse{Models: models, Default: models[0]})
}

// CreateSession starts an empty conversation and hands back the token
// that names it.
func (h *ChatHandler) CreateSession(c echo.Context) error {
	s := h.sessions.Start()

	signed, err := h.tokens.Issue(s.ID)
	if err != nil {
		h.sessions.End(s.ID)
		log.WithCtx(requestContext(c)).Error("failed to issue session token", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}

	return c.JSON(http.StatusCreated, createSessionResponse{
		SessionID: s.ID,
		Token:     signed,
		Type:      "Bearer",
		Model:     s.Model(),
	})
}

// SessionMiddleware resolves the Bearer session token to a live session.
func (h *ChatHandler) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		sessionID, err := h.tokens.Parse(tokenString)
		if err != nil {
			log.WithCtx(requestContext(c)).Debug("session token rejected", zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid session token")
		}

		s, err := h.sessions.Get(sessionID)
		if err != nil {
			return mapError(err)
		}

		c.Set(sessionKey, s)
		return next(c)
	}
}

func (h *ChatHandler) GetSession(c echo.Context) error {
	s := sessionFrom(c)
	return c.JSON(http.StatusOK, sessionResponse{
		SessionID: s.ID,
		Model:     s.Model(),
		Turns:     len(h.chat.History(s)),
		CreatedAt: s.CreatedAt,
	})
}

func (h *ChatHandler) EndSession(c echo.Context) error {
	h.sessions.End(sessionFrom(c).ID)
	return c.NoContent(http.StatusNoContent)
}

func (h *ChatHandler) ListMessages(c echo.Context) error {
	return c.JSON(http.StatusOK, messagesResponse{Turns: h.chat.History(sessionFrom(c))})
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}

	ex, err := h.chat.Send(requestContext(c), sessionFrom(c), req.Text)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, toSendMessageResponse(ex))
}

func (h *ChatHandler) ClearMessages(c echo.Context) error {
	h.chat.Clear(requestContext(c), sessionFrom(c))
	return c.NoContent(http.StatusNoContent)
}

func (h *ChatHandler) SelectModel(c echo.Context) error {
	var req selectModelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}

	s := sessionFrom(c)
	if err := h.chat.SelectModel(requestContext(c), s, req.Model); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"model": s.Model()})
}

func toSendMessageResponse(ex usecase.Exchange) SendMessageResponse {
	return SendMessageResponse{
		UserTurn:      ex.User,
		AssistantTurn: ex.Assistant,
		Outcome:       ex.Outcome.String(),
	}
}

func sessionFrom(c echo.Context) *usecase.Session {
	return c.Get(sessionKey).(*usecase.Session)
}

func requestContext(c echo.Context) context.Context {
	ctx := c.Request().Context()
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		ctx = log.ContextWithRequest(ctx, id)
	}
	if s, ok := c.Get(sessionKey).(*usecase.Session); ok {
		ctx = log.ContextWithSession(ctx, s.ID)
	}
	return ctx
}

func mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	case errors.Is(err, domain.ErrUnknownModel):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
