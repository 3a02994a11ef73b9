// Package speech turns assistant replies into audio via the ElevenLabs
// text-to-speech REST API.
package speech

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModelID = "eleven_multilingual_v2"
	// Rachel, the stock ElevenLabs voice.
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// Synthesizer converts reply text to spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ElevenLabs is a Synthesizer over the ElevenLabs REST API. Responses are
// MP3 bytes.
type ElevenLabs struct {
	client  *resty.Client
	voiceID string
	modelID string
}

type Option func(*ElevenLabs)

func WithVoice(voiceID string) Option {
	return func(e *ElevenLabs) { e.voiceID = voiceID }
}

func WithModel(modelID string) Option {
	return func(e *ElevenLabs) { e.modelID = modelID }
}

func WithBaseURL(baseURL string) Option {
	return func(e *ElevenLabs) { e.client.SetBaseURL(baseURL) }
}

func NewElevenLabs(apiKey string, opts ...Option) *ElevenLabs {
	e := &ElevenLabs{
		client: resty.New().
			SetBaseURL(defaultBaseURL).
			SetHeader("xi-api-key", apiKey),
		voiceID: defaultVoiceID,
		modelID: defaultModelID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot synthesize empty text")
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/mpeg").
		SetBody(synthesisRequest{Text: text, ModelID: e.modelID}).
		Post("/v1/text-to-speech/" + e.voiceID)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("speech synthesis failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}
