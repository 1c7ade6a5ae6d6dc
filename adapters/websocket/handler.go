package websocket

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/satriahrh/synapse/usecase"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

// Handler serves "/ws". A session token in the "token" query parameter or a
// Bearer header attaches the connection to that session; without one the
// connection starts a session of its own and ends it on disconnect.
func (s *Server) Handler(c echo.Context) error {
	session, owned, err := s.resolveSession(c)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		if owned {
			s.sessions.End(session.ID)
		}
		return err
	}

	client := NewClient(conn, session, owned)
	release := s.sessions.Attach(session)
	s.hub.Register(client)

	if client.Owned() {
		signed, err := s.tokens.Issue(session.ID)
		if err != nil {
			log.WithCtx(client.Context()).Error("Failed to issue session token", zap.Error(err))
		}
		client.SendFrame(Frame{Type: FrameSession, SessionID: session.ID, Token: signed, Model: session.Model()})
	} else {
		client.SendFrame(Frame{Type: FrameSession, SessionID: session.ID, Model: session.Model()})
	}

	client.Run(s.handleFrame)

	defer func() {
		s.hub.Unregister(client)
		release()
		if client.Owned() {
			s.sessions.End(session.ID)
		}
	}()

	<-client.Context().Done()

	return nil
}

func (s *Server) resolveSession(c echo.Context) (*usecase.Session, bool, error) {
	tokenString := c.QueryParam("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	}
	if tokenString == "" {
		return s.sessions.Start(), true, nil
	}

	sessionID, err := s.tokens.Parse(tokenString)
	if err != nil {
		return nil, false, echo.NewHTTPError(http.StatusUnauthorized, "Invalid session token")
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, false, echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	return session, false, nil
}
