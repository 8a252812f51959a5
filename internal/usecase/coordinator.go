package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"murmur/internal/domain"
	"murmur/internal/logging"
	"murmur/internal/ports"
)

// CoordinatorConfig selects the downstream behavior applied to every
// finished capture.
type CoordinatorConfig struct {
	Delivery domain.DeliveryOptions
	// Transformation, when non-nil, is applied to each transcription before
	// delivery.
	Transformation *domain.Transformation
	// TransformTimeout bounds a single transformation run. Zero means no
	// deadline.
	TransformTimeout time.Duration
}

// Coordinator chains the session manager into the transcription,
// transformation and delivery pipelines: stop → persist → transcribe →
// transform → deliver. It is the only component that talks to all of them.
type Coordinator struct {
	sessions       *SessionManager
	transcription  *TranscriptionPipeline
	transformation *TransformationPipeline
	dispatcher     *OutputDispatcher
	recordings     ports.RecordingStore
	notifier       ports.Notifier
	cfg            CoordinatorConfig
	log            zerolog.Logger
}

func NewCoordinator(
	sessions *SessionManager,
	transcription *TranscriptionPipeline,
	transformation *TransformationPipeline,
	dispatcher *OutputDispatcher,
	recordings ports.RecordingStore,
	notifier ports.Notifier,
	cfg CoordinatorConfig,
) *Coordinator {
	return &Coordinator{
		sessions:       sessions,
		transcription:  transcription,
		transformation: transformation,
		dispatcher:     dispatcher,
		recordings:     recordings,
		notifier:       notifier,
		cfg:            cfg,
		log:            logging.WithComponent("coordinator"),
	}
}

// Record opens a session if needed and starts capturing.
func (c *Coordinator) Record(ctx context.Context) error {
	if err := c.sessions.EnsureSession(ctx, nil); err != nil {
		c.notifyError("Could not start recording", err)
		return err
	}
	if _, err := c.sessions.StartRecording(ctx, nil); err != nil {
		c.notifyError("Could not start recording", err)
		return err
	}
	c.notifier.Notify(domain.Notification{
		Severity:    domain.SeverityInfo,
		Title:       "Recording",
		Description: "Speak now. Stop the recording to transcribe.",
	})
	return nil
}

// Stop finalizes the capture and runs the full downstream chain. A
// warning-class error from session teardown is surfaced to the user but does
// not abort processing the captured audio.
func (c *Coordinator) Stop(ctx context.Context) (*domain.Recording, error) {
	result, err := c.sessions.StopRecording(ctx, nil)
	if err != nil {
		if !domain.IsWarning(err) {
			c.notifyError("Could not stop recording", err)
			return nil, err
		}
		c.notifier.Notify(domain.Notification{
			Severity:    domain.SeverityWarning,
			Title:       "Session left open",
			Description: "The recording was captured but the device could not be released. You may need to restart the application.",
		})
	}
	return c.ProcessCapturedAudio(ctx, result.RecordingID, result.Audio)
}

// Cancel discards the in-progress capture without transcribing.
func (c *Coordinator) Cancel(ctx context.Context) error {
	err := c.sessions.CancelRecording(ctx, nil)
	if err != nil && !domain.IsWarning(err) {
		c.notifyError("Could not cancel recording", err)
		return err
	}
	if domain.IsWarning(err) {
		c.notifier.Notify(domain.Notification{
			Severity:    domain.SeverityWarning,
			Title:       "Session left open",
			Description: "The recording was discarded but the device could not be released.",
		})
	}
	c.notifier.Notify(domain.Notification{
		Severity:    domain.SeverityInfo,
		Title:       "Recording discarded",
		Description: "Nothing was transcribed.",
	})
	return nil
}

// Toggle starts a recording when idle and stops it when capturing.
func (c *Coordinator) Toggle(ctx context.Context) error {
	if c.sessions.State() == domain.StateSessionRecording {
		_, err := c.Stop(ctx)
		return err
	}
	return c.Record(ctx)
}

// ProcessCapturedAudio persists a finalized audio artifact as a recording
// and runs transcribe → transform → deliver. Also invoked per detected
// speech segment in voice-activated mode.
func (c *Coordinator) ProcessCapturedAudio(ctx context.Context, recordingID string, audio []byte) (*domain.Recording, error) {
	if recordingID == "" {
		recordingID = uuid.NewString()
	}
	now := time.Now()
	rec := &domain.Recording{
		ID:                  recordingID,
		CreatedAt:           now,
		UpdatedAt:           now,
		Audio:               audio,
		TranscriptionStatus: domain.StatusUnprocessed,
	}
	if err := c.recordings.Create(ctx, rec); err != nil {
		c.notifyError("Could not save recording", err)
		return nil, fmt.Errorf("failed to save recording: %w", err)
	}

	text, err := c.transcription.Transcribe(ctx, rec)
	if err != nil {
		c.notifyError("Transcription failed", err)
		return rec, err
	}

	final := text
	if c.cfg.Transformation != nil {
		runCtx := ctx
		if c.cfg.TransformTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, c.cfg.TransformTimeout)
			defer cancel()
		}
		run, err := c.transformation.Run(runCtx, TransformInput{Text: text, RecordingID: rec.ID}, *c.cfg.Transformation)
		if err != nil {
			c.notifyError("Transformation failed", err)
			return rec, err
		}
		final = run.Output
	}

	if strings.TrimSpace(final) == "" {
		c.notifier.Notify(domain.Notification{
			Severity:    domain.SeverityInfo,
			Title:       "Nothing recognized",
			Description: "The recording did not contain any recognizable speech.",
		})
		return rec, nil
	}

	// Delivery failures are already reported as warnings by the dispatcher;
	// the transcription itself is preserved regardless.
	if _, err := c.dispatcher.Deliver(ctx, final, c.cfg.Delivery); err != nil {
		c.log.Warn().Err(err).Str("recordingId", rec.ID).Msg("delivery incomplete")
	}

	c.notifier.Notify(domain.Notification{
		Severity:    domain.SeveritySuccess,
		Title:       "Transcribed",
		Description: truncate(final, 100),
	})
	return rec, nil
}

func (c *Coordinator) notifyError(title string, err error) {
	c.notifier.Notify(domain.Notification{
		Severity:    domain.SeverityError,
		Title:       title,
		Description: err.Error(),
	})
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
