// Package bootstrap assembles the runtime dependency graph.
package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"murmur/internal/capture"
	"murmur/internal/config"
	"murmur/internal/domain"
	"murmur/internal/notify"
	"murmur/internal/output"
	"murmur/internal/ports"
	"murmur/internal/providers/anthropic"
	"murmur/internal/providers/groq"
	"murmur/internal/providers/ollama"
	"murmur/internal/providers/openai"
	"murmur/internal/store"
	"murmur/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Coordinator *usecase.Coordinator
	Sessions    *usecase.SessionManager
	Vad         *usecase.VadSessionManager
	States      *usecase.StateStore
	Store       *store.Store
	Config      config.Config
}

// Close releases everything Build acquired.
func (s Services) Close() error {
	s.Sessions.Close()
	return s.Store.Close()
}

// Build wires all backend dependencies for the current runtime.
func Build(events ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return Services{}, err
	}

	transcriber, err := newTranscriber(cfg)
	if err != nil {
		db.Close()
		return Services{}, err
	}

	transformation, err := selectedTransformation(cfg.Transform)
	if err != nil {
		db.Close()
		return Services{}, err
	}

	states := usecase.NewStateStore()
	params := ports.SessionParams{
		DeviceID:      cfg.Recording.DeviceID,
		BitsPerSecond: cfg.Recording.BitrateKbps * 1000,
	}

	sessions := usecase.NewSessionManager(newCapture(cfg.Recording), states, events, usecase.SessionConfig{
		Params:         params,
		FasterRerecord: cfg.Recording.FasterRerecord,
	})

	transcription := usecase.NewTranscriptionPipeline(db.Recordings(), transcriber, events, usecase.TranscriptionConfig{
		Options: ports.TranscribeOptions{
			Language:    cfg.Transcription.Language,
			Prompt:      cfg.Transcription.Prompt,
			Vocabulary:  cfg.Transcription.Vocabulary,
			Temperature: cfg.Transcription.Temperature,
		},
		Timeout: cfg.Transcription.Timeout,
	})

	transformations := usecase.NewTransformationPipeline(
		newPromptProviders(cfg.Providers),
		cfg.Transcription.Vocabulary,
		db.Runs(),
		events,
	)

	dispatcher := usecase.NewOutputDispatcher(
		output.NewSystemClipboard(),
		output.NewKeystrokeWriter(),
		events,
	)

	coordinator := usecase.NewCoordinator(
		sessions,
		transcription,
		transformations,
		dispatcher,
		db.Recordings(),
		notify.NewDesktopNotifier(cfg.Notify.Enabled),
		usecase.CoordinatorConfig{
			Delivery: domain.DeliveryOptions{
				Copy:  cfg.Transcription.CopyOnSuccess,
				Paste: cfg.Transcription.PasteOnSuccess,
			},
			Transformation:   transformation,
			TransformTimeout: cfg.Transform.Timeout,
		},
	)

	listener := capture.NewVadListener(capture.VadConfig{
		SampleRate:      cfg.Recording.SampleRate,
		Channels:        cfg.Recording.Channels,
		SpeechThreshold: cfg.Vad.SpeechThreshold,
		MinSilence:      cfg.Vad.MinSilence,
		MaxSegment:      cfg.Vad.MaxSegment,
	})
	vad := usecase.NewVadSessionManager(listener, usecase.NewStateStore(), events,
		func(ctx context.Context, audio []byte) {
			_, _ = coordinator.ProcessCapturedAudio(ctx, "", audio)
		},
		usecase.VadSessionConfig{
			Params:         params,
			FasterRerecord: cfg.Recording.FasterRerecord,
		},
	)

	return Services{
		Coordinator: coordinator,
		Sessions:    sessions,
		Vad:         vad,
		States:      states,
		Store:       db,
		Config:      cfg,
	}, nil
}

func newCapture(cfg config.RecordingConfig) ports.Capture {
	if strings.EqualFold(cfg.Backend, "ffmpeg") {
		return capture.NewFFmpegCapture(capture.FFmpegConfig{
			Command:     cfg.FFmpegCommand,
			InputFormat: cfg.InputFormat,
			Device:      cfg.DeviceID,
			SampleRate:  cfg.SampleRate,
			Channels:    cfg.Channels,
		})
	}
	return capture.NewPortAudioCapture(capture.PortAudioConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	})
}

func newTranscriber(cfg config.Config) (ports.Transcriber, error) {
	switch strings.ToLower(cfg.Transcription.Service) {
	case "openai":
		if cfg.Providers.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is not configured")
		}
		return openai.NewClient(openai.Config{
			APIKey:             cfg.Providers.OpenAIAPIKey,
			TranscriptionModel: cfg.Transcription.OpenAIModel,
		}), nil
	case "groq":
		if cfg.Providers.GroqAPIKey == "" {
			return nil, errors.New("GROQ_API_KEY is not configured")
		}
		return groq.NewClient(groq.Config{
			APIKey:             cfg.Providers.GroqAPIKey,
			TranscriptionModel: cfg.Transcription.GroqModel,
		}), nil
	case "fasterwhisper":
		// faster-whisper-server speaks the OpenAI audio API.
		return openai.NewClient(openai.Config{
			BaseURL:            strings.TrimRight(cfg.Transcription.ServerURL, "/") + "/v1",
			TranscriptionModel: cfg.Transcription.ServerModel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transcription service %q", cfg.Transcription.Service)
	}
}

func newPromptProviders(cfg config.ProvidersConfig) map[domain.ProviderName]ports.PromptProvider {
	providers := map[domain.ProviderName]ports.PromptProvider{
		domain.ProviderOllama: ollama.NewClient(ollama.Config{BaseURL: cfg.OllamaURL}),
	}
	if cfg.OpenAIAPIKey != "" {
		providers[domain.ProviderOpenAI] = openai.NewClient(openai.Config{APIKey: cfg.OpenAIAPIKey})
	}
	if cfg.GroqAPIKey != "" {
		providers[domain.ProviderGroq] = groq.NewClient(groq.Config{APIKey: cfg.GroqAPIKey})
	}
	if cfg.AnthropicAPIKey != "" {
		providers[domain.ProviderAnthropic] = anthropic.NewClient(anthropic.Config{APIKey: cfg.AnthropicAPIKey})
	}
	return providers
}

// selectedTransformation resolves the configured transformation from the
// definitions file. No selection means transcriptions pass through untouched.
func selectedTransformation(cfg config.TransformConfig) (*domain.Transformation, error) {
	if cfg.SelectedTransformationID == "" {
		return nil, nil
	}

	data, err := os.ReadFile(cfg.DefinitionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transformations file: %w", err)
	}
	var transformations []domain.Transformation
	if err := json.Unmarshal(data, &transformations); err != nil {
		return nil, fmt.Errorf("failed to parse transformations file: %w", err)
	}

	for i := range transformations {
		if transformations[i].ID == cfg.SelectedTransformationID {
			return &transformations[i], nil
		}
	}
	return nil, fmt.Errorf("transformation %q not found in %s", cfg.SelectedTransformationID, cfg.DefinitionsPath)
}
