package domain

import "context"

// Transcriber turns a stream of LINEAR16 audio chunks into text.
type Transcriber interface {
	TranscribeStreaming(ctx context.Context, chunks <-chan []byte) (string, error)
}

// Synthesizer renders text as encoded speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
