package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the read-only settings snapshot consulted by the core. It is
// resolved once at startup from environment variables and defaults.
type Config struct {
	Recording     RecordingConfig
	Transcription TranscriptionConfig
	Transform     TransformConfig
	Providers     ProvidersConfig
	Vad           VadConfig
	Database      DatabaseConfig
	Notify        NotifyConfig
	Log           LogConfig
}

type RecordingConfig struct {
	Backend        string // portaudio, ffmpeg
	DeviceID       string
	BitrateKbps    int
	SampleRate     int
	Channels       int
	InputFormat    string // ffmpeg input format (pulse, alsa, avfoundation)
	FFmpegCommand  string
	FasterRerecord bool
}

type TranscriptionConfig struct {
	Service        string // OpenAI, Groq, FasterWhisper
	Language       string
	Prompt         string
	Vocabulary     string
	Temperature    float64
	Timeout        time.Duration
	OpenAIModel    string
	GroqModel      string
	ServerURL      string // faster-whisper-server base URL
	ServerModel    string
	CopyOnSuccess  bool
	PasteOnSuccess bool
}

type TransformConfig struct {
	SelectedTransformationID string
	// DefinitionsPath is a JSON file holding the available transformations.
	DefinitionsPath string
	Timeout         time.Duration
}

type ProvidersConfig struct {
	OpenAIAPIKey    string
	GroqAPIKey      string
	AnthropicAPIKey string
	OllamaURL       string
}

type VadConfig struct {
	SpeechThreshold float64
	MinSilence      time.Duration
	MaxSegment      time.Duration
}

type DatabaseConfig struct {
	Path string
}

type NotifyConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from environment variables and sensible
// defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	defaultDB := filepath.Join(home, ".local", "share", "murmur", "murmur.sqlite")

	cfg := Config{
		Recording: RecordingConfig{
			Backend:        envOrDefault("MURMUR_CAPTURE_BACKEND", "portaudio"),
			DeviceID:       envOrDefault("MURMUR_AUDIO_INPUT_DEVICE", "default"),
			BitrateKbps:    envOrDefaultInt("MURMUR_BITRATE_KBPS", 128),
			SampleRate:     envOrDefaultInt("MURMUR_SAMPLE_RATE", 16000),
			Channels:       envOrDefaultInt("MURMUR_CHANNELS", 1),
			InputFormat:    envOrDefault("MURMUR_AUDIO_INPUT_FORMAT", "pulse"),
			FFmpegCommand:  envOrDefault("MURMUR_FFMPEG_COMMAND", "ffmpeg"),
			FasterRerecord: envOrDefaultBool("MURMUR_FASTER_RERECORD", false),
		},
		Transcription: TranscriptionConfig{
			Service:        envOrDefault("MURMUR_TRANSCRIPTION_SERVICE", "OpenAI"),
			Language:       envOrDefault("MURMUR_TRANSCRIPTION_LANGUAGE", "auto"),
			Prompt:         os.Getenv("MURMUR_TRANSCRIPTION_PROMPT"),
			Vocabulary:     os.Getenv("MURMUR_TRANSCRIPTION_VOCABULARY"),
			Temperature:    envOrDefaultFloat("MURMUR_TRANSCRIPTION_TEMPERATURE", 0),
			Timeout:        envOrDefaultDuration("MURMUR_TRANSCRIPTION_TIMEOUT", 60*time.Second),
			OpenAIModel:    envOrDefault("MURMUR_OPENAI_TRANSCRIPTION_MODEL", "whisper-1"),
			GroqModel:      envOrDefault("MURMUR_GROQ_TRANSCRIPTION_MODEL", "whisper-large-v3"),
			ServerURL:      envOrDefault("MURMUR_WHISPER_SERVER_URL", "http://localhost:8000"),
			ServerModel:    envOrDefault("MURMUR_WHISPER_SERVER_MODEL", "Systran/faster-whisper-medium.en"),
			CopyOnSuccess:  envOrDefaultBool("MURMUR_COPY_ON_SUCCESS", false),
			PasteOnSuccess: envOrDefaultBool("MURMUR_PASTE_ON_SUCCESS", true),
		},
		Transform: TransformConfig{
			SelectedTransformationID: os.Getenv("MURMUR_TRANSFORMATION_ID"),
			DefinitionsPath:          envOrDefault("MURMUR_TRANSFORMATIONS_FILE", filepath.Join(home, ".config", "murmur", "transformations.json")),
			Timeout:                  envOrDefaultDuration("MURMUR_TRANSFORM_TIMEOUT", 60*time.Second),
		},
		Providers: ProvidersConfig{
			OpenAIAPIKey:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			GroqAPIKey:      strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
			AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
			OllamaURL:       envOrDefault("OLLAMA_URL", "http://localhost:11434"),
		},
		Vad: VadConfig{
			SpeechThreshold: envOrDefaultFloat("MURMUR_VAD_THRESHOLD", 0.015),
			MinSilence:      envOrDefaultDuration("MURMUR_VAD_MIN_SILENCE", 700*time.Millisecond),
			MaxSegment:      envOrDefaultDuration("MURMUR_VAD_MAX_SEGMENT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Path: envOrDefault("MURMUR_DB_PATH", defaultDB),
		},
		Notify: NotifyConfig{
			Enabled: envOrDefaultBool("MURMUR_NOTIFICATIONS", true),
		},
		Log: LogConfig{
			Level:  envOrDefault("MURMUR_LOG_LEVEL", "info"),
			Format: envOrDefault("MURMUR_LOG_FORMAT", "console"),
		},
	}

	if cfg.Recording.SampleRate <= 0 {
		cfg.Recording.SampleRate = 16000
	}
	if cfg.Recording.Channels <= 0 {
		cfg.Recording.Channels = 1
	}
	if cfg.Recording.BitrateKbps <= 0 {
		cfg.Recording.BitrateKbps = 128
	}
	if cfg.Vad.SpeechThreshold <= 0 {
		cfg.Vad.SpeechThreshold = 0.015
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
