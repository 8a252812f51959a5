// Package openai implements transcription and prompt completion against the
// OpenAI HTTP API. The same client serves any OpenAI-compatible server, such
// as Groq or a local faster-whisper-server, through a custom base URL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"murmur/internal/ports"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Config controls the OpenAI client.
type Config struct {
	APIKey  string
	BaseURL string
	// TranscriptionModel is the speech model used by Transcribe.
	TranscriptionModel string
}

// Client talks to an OpenAI-compatible API.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = "whisper-1"
	}
	return &Client{cfg: cfg, http: &http.Client{}}
}

// Transcribe sends the audio artifact to the transcriptions endpoint.
func (c *Client) Transcribe(ctx context.Context, audio []byte, opts ports.TranscribeOptions) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	_ = form.WriteField("model", c.cfg.TranscriptionModel)
	if opts.Language != "" && opts.Language != "auto" {
		_ = form.WriteField("language", opts.Language)
	}
	if prompt := transcriptionPrompt(opts); prompt != "" {
		_ = form.WriteField("prompt", prompt)
	}
	if opts.Temperature > 0 {
		_ = form.WriteField("temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64))
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return result.Text, nil
}

// Complete runs one chat completion and returns the assistant's reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	if model == "" {
		return "", errors.New("no model configured for completion")
	}

	payload := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("completion response contained no choices")
	}
	return result.Choices[0].Message.Content, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// transcriptionPrompt combines the configured prompt and vocabulary; speech
// APIs accept spelling hints through the prompt field.
func transcriptionPrompt(opts ports.TranscribeOptions) string {
	parts := make([]string, 0, 2)
	if p := strings.TrimSpace(opts.Prompt); p != "" {
		parts = append(parts, p)
	}
	if v := strings.TrimSpace(opts.Vocabulary); v != "" {
		parts = append(parts, "Vocabulary: "+v)
	}
	return strings.Join(parts, "\n")
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return fmt.Errorf("api error %d", resp.StatusCode)
	}
	return fmt.Errorf("api error %d: %s", resp.StatusCode, detail)
}
