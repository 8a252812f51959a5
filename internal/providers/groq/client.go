// Package groq adapts the OpenAI-compatible Groq API.
package groq

import (
	"context"

	"murmur/internal/ports"
	"murmur/internal/providers/openai"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Config controls the Groq client.
type Config struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
}

// Client speaks Groq's OpenAI-compatible endpoints.
type Client struct {
	inner *openai.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = "whisper-large-v3"
	}
	return &Client{inner: openai.NewClient(openai.Config{
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		TranscriptionModel: cfg.TranscriptionModel,
	})}
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, opts ports.TranscribeOptions) (string, error) {
	return c.inner.Transcribe(ctx, audio, opts)
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	return c.inner.Complete(ctx, systemPrompt, userPrompt, model)
}
