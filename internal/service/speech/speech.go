package speech

import (
	"context"
	"fmt"
	"strings"

	"aidesk/internal/models"

	"google.golang.org/genai"
)

const defaultVoice = "Kore"

// Error classifies a failed synthesis dispatch, wrapping the service or I/O
// cause. No retry, no chunking of long text.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("synthesis: %v", e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Synthesizer sends text to the Gemini speech generation API and returns the
// audio as WAV bytes.
type Synthesizer struct {
	client *genai.Client
	model  string
}

func NewSynthesizer(ctx context.Context, credential, model string) (*Synthesizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: credential,
	})
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("init speech client: %w", err)}
	}
	return &Synthesizer{client: client, model: model}, nil
}

// Synthesize converts text to speech. Callers must reject empty text before
// invoking; the language code selects the spoken language and the speed
// multiplier is rendered as a pace instruction (the service exposes no
// numeric speed knob).
func (s *Synthesizer) Synthesize(ctx context.Context, req models.SpeechRequest) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: req.Language,
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: defaultVoice,
				},
			},
		},
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(speechPrompt(req)), cfg)
	if err != nil {
		return nil, &Error{Err: err}
	}

	pcm, err := extractAudio(resp)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return encodeWAV(pcm, pcmSampleRate), nil
}

// speechPrompt prefixes a pace instruction when the speed differs from 1x.
func speechPrompt(req models.SpeechRequest) string {
	var builder strings.Builder
	switch {
	case req.Speed > 0 && req.Speed < 0.9:
		builder.WriteString("Read the following slowly: ")
	case req.Speed > 1.1:
		builder.WriteString("Read the following quickly: ")
	}
	builder.WriteString(req.Text)
	return builder.String()
}

func extractAudio(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("response has no candidates")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	return nil, fmt.Errorf("response has no audio data")
}
