package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/satriahrh/synapse/adapters/token"
	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/usecase"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

type Server struct {
	upgrader      websocket.Upgrader
	chat          *usecase.ChatService
	sessions      *usecase.SessionManager
	tokens        *token.SessionTokens
	messageBroker domain.MessageBroker
	hub           *Hub
}

func NewServer(chat *usecase.ChatService, sessions *usecase.SessionManager, tokens *token.SessionTokens, messageBroker domain.MessageBroker) *Server {
	return &Server{
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		chat:          chat,
		sessions:      sessions,
		tokens:        tokens,
		messageBroker: messageBroker,
		hub:           NewHub(),
	}
}

// Run starts the turn listener. The listener stops with ctx.
func (s *Server) Run(ctx context.Context) error {
	turns, err := s.messageBroker.Subscribe(ctx, domain.TurnsTopic, "")
	if err != nil {
		return err
	}

	go s.listenTurns(ctx, turns)
	return nil
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// listenTurns forwards every published turn event to the clients watching
// that session.
func (s *Server) listenTurns(ctx context.Context, turns <-chan domain.Message) {
	log.WithCtx(ctx).Info("WebSocket server listening to turn events")

	for {
		select {
		case msg, ok := <-turns:
			if !ok {
				log.WithCtx(ctx).Info("Turn topic closed")
				return
			}

			var event domain.TurnEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.WithCtx(ctx).Error("Failed to unmarshal turn event", zap.Error(err))
				continue
			}

			frame := eventFrame(event)
			payload, err := encodeFrame(frame)
			if err != nil {
				log.WithCtx(ctx).Error("Failed to marshal WebSocket frame", zap.Error(err))
				continue
			}

			sent := s.hub.SendToSession(event.SessionID, payload)
			log.WithCtx(ctx).Debug("Forwarded turn event",
				zap.String("session_id", event.SessionID),
				zap.String("type", frame.Type),
				zap.Int("clients", sent))

		case <-ctx.Done():
			log.WithCtx(ctx).Info("Turn listener stopped")
			return
		}
	}
}

func eventFrame(event domain.TurnEvent) Frame {
	if event.Cleared {
		return Frame{Type: FrameCleared, SessionID: event.SessionID, Timestamp: event.Timestamp}
	}
	return Frame{
		Type:      FrameTurn,
		SessionID: event.SessionID,
		Turn:      event.Turn,
		Outcome:   event.Outcome,
		Timestamp: event.Timestamp,
	}
}

// handleFrame runs one inbound frame. Turns and clears are not answered
// here: they reach the client through the turn listener, like any other
// viewer of the session.
func (s *Server) handleFrame(c *Client, f Frame) {
	ctx := c.Context()
	session := c.Session()

	switch f.Type {
	case FrameMessage:
		if _, err := s.chat.Send(ctx, session, f.Text); err != nil {
			c.SendFrame(Frame{Type: FrameError, Error: err.Error()})
		}

	case FrameClear:
		s.chat.Clear(ctx, session)

	case FrameModel:
		if err := s.chat.SelectModel(ctx, session, f.Model); err != nil {
			c.SendFrame(Frame{Type: FrameError, Error: err.Error()})
			return
		}
		c.SendFrame(Frame{Type: FrameModel, SessionID: session.ID, Model: session.Model()})

	case FrameHistory:
		c.SendFrame(Frame{Type: FrameHistory, SessionID: session.ID, Turns: s.chat.History(session)})

	case FrameModels:
		c.SendFrame(Frame{Type: FrameModels, Model: session.Model(), Models: s.chat.Models()})

	default:
		c.SendFrame(Frame{Type: FrameError, Error: "unknown frame type: " + f.Type})
	}
}
