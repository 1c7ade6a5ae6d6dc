package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/satriahrh/synapse/domain"
)

const sampleRateHertz = 16000

type GoogleSpeech struct {
	client       *speech.Client
	languageCode string
}

var _ domain.Transcriber = (*GoogleSpeech)(nil)

func NewGoogleSpeech(ctx context.Context, languageCode string) (*GoogleSpeech, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Google speech client: %w", err)
	}
	return &GoogleSpeech{
		client:       client,
		languageCode: languageCode,
	}, nil
}

// TranscribeStreaming streams LINEAR16 16kHz chunks until the channel is
// closed and returns the concatenated final transcripts.
func (g *GoogleSpeech) TranscribeStreaming(ctx context.Context, chunks <-chan []byte) (string, error) {
	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return "", fmt.Errorf("creating streaming client: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: sampleRateHertz,
					LanguageCode:    g.languageCode,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sending streaming config: %w", err)
	}

	sendErr := make(chan error, 1)
	go func() {
		for chunk := range chunks {
			err := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: chunk,
				},
			})
			if err != nil {
				sendErr <- fmt.Errorf("sending audio chunk: %w", err)
				return
			}
		}
		sendErr <- stream.CloseSend()
	}()

	var transcript strings.Builder
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("receiving transcription: %w", err)
		}
		if st := resp.GetError(); st != nil && st.GetCode() != 0 {
			return "", fmt.Errorf("recognition failed: %s", st.GetMessage())
		}
		for _, result := range resp.GetResults() {
			if !result.GetIsFinal() || len(result.GetAlternatives()) == 0 {
				continue
			}
			transcript.WriteString(result.GetAlternatives()[0].GetTranscript())
			transcript.WriteByte(' ')
		}
	}

	if err := <-sendErr; err != nil {
		return "", err
	}
	return strings.TrimSpace(transcript.String()), nil
}

func (g *GoogleSpeech) Close() error {
	return g.client.Close()
}
