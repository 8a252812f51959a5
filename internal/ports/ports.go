// Package ports declares the collaborator interfaces the dictation core
// depends on. Adapters live under internal/capture, internal/providers,
// internal/output, internal/store and internal/notify.
package ports

import (
	"context"

	"murmur/internal/domain"
)

// StatusFunc receives human-readable phase descriptions while a capture
// operation is in progress. Implementations must tolerate a nil func.
type StatusFunc func(phase string)

// SessionParams describe how the input device should be opened.
type SessionParams struct {
	DeviceID      string
	BitsPerSecond int
}

// Capture is a push-to-talk capture device. Open/Start/Stop/Cancel/Close
// mirror the session lifecycle; Stop returns the finalized audio artifact
// (a complete WAV payload).
type Capture interface {
	OpenDevice(ctx context.Context, params SessionParams, status StatusFunc) error
	Start(ctx context.Context, sessionToken string, status StatusFunc) error
	Stop(ctx context.Context, status StatusFunc) ([]byte, error)
	Cancel(ctx context.Context, status StatusFunc) error
	CloseDevice(ctx context.Context, status StatusFunc) error
	State() domain.RecorderState
}

// SegmentFunc receives one finalized speech segment from a VAD capture.
type SegmentFunc func(audio []byte)

// VadCapture continuously listens and emits speech segments detected by the
// device's endpoint detection. Segments fire on the capture's own goroutine;
// callbacks must not block.
type VadCapture interface {
	Open(ctx context.Context, params SessionParams, onSegment SegmentFunc) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Close(ctx context.Context) error
	State() domain.RecorderState
}

// TranscribeOptions carry the user-configured transcription tuning.
type TranscribeOptions struct {
	Language    string
	Prompt      string
	Vocabulary  string
	Temperature float64
}

// Transcriber converts a finalized audio artifact into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (string, error)
}

// PromptProvider is one LLM vendor capable of completing a prompt pair.
type PromptProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// CursorWriter inserts text at the active text cursor.
type CursorWriter interface {
	WriteAtCursor(ctx context.Context, text string) error
}

// RecordingStore persists recordings. The core creates and updates them;
// deletion is an external user action.
type RecordingStore interface {
	Create(ctx context.Context, rec *domain.Recording) error
	Update(ctx context.Context, rec *domain.Recording) error
	Get(ctx context.Context, id string) (*domain.Recording, error)
	Delete(ctx context.Context, ids ...string) error
	List(ctx context.Context) ([]domain.Recording, error)
}

// RunStore persists transformation runs, listed newest-first.
type RunStore interface {
	Save(ctx context.Context, run *domain.TransformationRun) error
	ListByTransformation(ctx context.Context, transformationID string) ([]domain.TransformationRun, error)
	ListByRecording(ctx context.Context, recordingID string) ([]domain.TransformationRun, error)
}

// Notifier presents fire-and-forget notifications. The core never blocks on
// or inspects the outcome.
type Notifier interface {
	Notify(n domain.Notification)
}

// EventSink emits core state and progress to whatever front end is attached.
type EventSink interface {
	RecorderStateChanged(state domain.RecorderState)
	Status(phase string)
	TranscriptReady(recordingID, text string)
	Delivered(status domain.DeliveryStatus)
	Warning(code domain.ErrorCode, detail string)
	Error(code domain.ErrorCode, detail string)
}
