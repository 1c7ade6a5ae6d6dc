package websocket

import (
	"encoding/json"
	"time"

	"github.com/satriahrh/synapse/domain"
)

// Frame types sent by clients.
const (
	FrameMessage = "message"
	FrameClear   = "clear"
	FrameModel   = "model"
	FrameHistory = "history"
	FrameModels  = "models"
)

// Frame types sent by the server. FrameModel, FrameHistory and FrameModels
// are also used as replies.
const (
	FrameSession = "session"
	FrameTurn    = "turn"
	FrameCleared = "cleared"
	FrameError   = "error"
)

// Frame is the JSON envelope exchanged in both directions.
type Frame struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Token     string        `json:"token,omitempty"`
	Text      string        `json:"text,omitempty"`
	Model     string        `json:"model,omitempty"`
	Models    []string      `json:"models,omitempty"`
	Turn      *domain.Turn  `json:"turn,omitempty"`
	Turns     []domain.Turn `json:"turns,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func encodeFrame(f Frame) ([]byte, error) {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	return json.Marshal(f)
}
