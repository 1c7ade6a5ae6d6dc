package http

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/satriahrh/synapse/domain"
	"github.com/satriahrh/synapse/usecase"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

const (
	MaxAudioDuration     = 60 * time.Second
	transcriptionTimeout = 30 * time.Second
	audioChunkSize       = 4096
)

// VoiceHandler lets a session speak its message and listen to replies.
type VoiceHandler struct {
	chat        *usecase.ChatService
	transcriber domain.Transcriber
	synthesizer domain.Synthesizer
}

func NewVoiceHandler(chat *usecase.ChatService, transcriber domain.Transcriber, synthesizer domain.Synthesizer) *VoiceHandler {
	return &VoiceHandler{
		chat:        chat,
		transcriber: transcriber,
		synthesizer: synthesizer,
	}
}

// Register mounts the voice routes on the session-scoped group.
func (h *VoiceHandler) Register(session *echo.Group) {
	session.POST("/audio", h.SendAudio)
	session.GET("/speech", h.Speech)
}

// SendAudio transcribes a LINEAR16 clip streamed in the request body and
// sends the transcript as the user's message.
func (h *VoiceHandler) SendAudio(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "audio/") && !strings.HasPrefix(contentType, echo.MIMEOctetStream) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid content type. Expected audio/* or application/octet-stream")
	}

	session := sessionFrom(c)
	reqCtx := requestContext(c)
	logger := log.WithCtx(reqCtx)

	ctx, cancel := context.WithTimeout(reqCtx, transcriptionTimeout)
	defer cancel()

	chunks := make(chan []byte, 100)
	go func() {
		defer close(chunks)
		started := time.Now()
		body := c.Request().Body

		for {
			chunk := make([]byte, audioChunkSize)
			n, err := body.Read(chunk)
			if n > 0 {
				select {
				case chunks <- chunk[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					logger.Warn("error reading audio chunk", zap.Error(err))
				}
				return
			}
			if time.Since(started) > MaxAudioDuration {
				logger.Warn("audio stream exceeded max duration")
				return
			}
		}
	}()

	type transcription struct {
		text string
		err  error
	}
	result := make(chan transcription, 1)
	go func() {
		text, err := h.transcriber.TranscribeStreaming(ctx, chunks)
		result <- transcription{text, err}
	}()

	var transcript string
	select {
	case r := <-result:
		if r.err != nil {
			logger.Error("streaming transcription failed", zap.Error(r.err))
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to transcribe audio")
		}
		transcript = r.text
	case <-ctx.Done():
		return echo.NewHTTPError(http.StatusRequestTimeout, "Transcription timeout")
	}

	if strings.TrimSpace(transcript) == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "No speech recognized")
	}
	logger.Info("audio transcribed", zap.Int("transcript_bytes", len(transcript)))

	ex, err := h.chat.Send(reqCtx, session, transcript)
	if err != nil {
		return mapError(err)
	}

	resp := toSendMessageResponse(ex)
	resp.Transcript = transcript
	return c.JSON(http.StatusOK, resp)
}

// Speech renders an assistant turn as MP3. The turn query parameter is an
// index into the conversation; without it the latest assistant turn is used.
func (h *VoiceHandler) Speech(c echo.Context) error {
	turns := h.chat.History(sessionFrom(c))

	index := -1
	if raw := c.QueryParam("turn"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n >= len(turns) {
			return echo.NewHTTPError(http.StatusBadRequest, "turn out of range")
		}
		if turns[n].Role != domain.AssistantRole {
			return echo.NewHTTPError(http.StatusBadRequest, "turn is not an assistant turn")
		}
		index = n
	} else {
		for i := len(turns) - 1; i >= 0; i-- {
			if turns[i].Role == domain.AssistantRole {
				index = i
				break
			}
		}
	}
	if index < 0 {
		return echo.NewHTTPError(http.StatusNotFound, "No assistant turn to speak")
	}

	audio, err := h.synthesizer.Synthesize(requestContext(c), turns[index].Content)
	if err != nil {
		log.WithCtx(requestContext(c)).Error("speech synthesis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to synthesize speech")
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}
