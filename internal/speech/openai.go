package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

func newClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

func NewOpenAITranscriber(apiKey, baseURL, model string) *OpenAITranscriber {
	return &OpenAITranscriber{client: newClient(apiKey, baseURL), model: model}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if format == "" {
		format = "wav"
	}
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model: t.model,
		// FilePath is only a filename hint here; the payload goes via Reader.
		FilePath: "utterance." + format,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return resp.Text, nil
}

type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAISynthesizer(apiKey, baseURL, model, voice string) *OpenAISynthesizer {
	return &OpenAISynthesizer{client: newClient(apiKey, baseURL), model: model, voice: voice}
}

// Synthesize renders text as mp3 audio.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer resp.Close()
	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return audio, nil
}
