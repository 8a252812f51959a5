package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"murmur/internal/domain"
	"murmur/internal/logging"
	"murmur/internal/ports"
)

// TranscriptionConfig tunes pipeline behavior.
type TranscriptionConfig struct {
	Options ports.TranscribeOptions
	// Timeout bounds the remote call; zero means no deadline.
	Timeout time.Duration
}

// TranscriptionPipeline turns a recording's audio artifact into text and
// keeps the recording's persisted status in step. Persistence failures are
// downgraded to warnings: a storage hiccup must never lose a transcription.
type TranscriptionPipeline struct {
	store       ports.RecordingStore
	transcriber ports.Transcriber
	events      ports.EventSink
	cfg         TranscriptionConfig
	log         zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

func NewTranscriptionPipeline(store ports.RecordingStore, transcriber ports.Transcriber, events ports.EventSink, cfg TranscriptionConfig) *TranscriptionPipeline {
	return &TranscriptionPipeline{
		store:       store,
		transcriber: transcriber,
		events:      events,
		cfg:         cfg,
		log:         logging.WithComponent("transcription"),
		inflight:    make(map[string]*sync.Mutex),
	}
}

// Transcribe recognizes rec's audio and returns the text. Status transitions
// UNPROCESSED→TRANSCRIBING→{DONE|FAILED} are persisted best-effort. Calls for
// the same recording id are serialized; distinct ids run concurrently.
func (p *TranscriptionPipeline) Transcribe(ctx context.Context, rec *domain.Recording) (string, error) {
	if len(rec.Audio) == 0 {
		return "", domain.ErrMissingAudio
	}

	lock := p.lockFor(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	rec.TranscriptionStatus = domain.StatusTranscribing
	p.persist(ctx, rec, "mark recording transcribing")

	callCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	text, err := p.transcriber.Transcribe(callCtx, rec.Audio, p.cfg.Options)
	if err != nil {
		if p.cfg.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", domain.ErrTranscriptionTimeout, p.cfg.Timeout)
		}
		rec.TranscriptionStatus = domain.StatusFailed
		p.persist(ctx, rec, "mark recording failed")
		p.events.Error(domain.ErrorCodeTranscription, err.Error())
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	rec.TranscribedText = text
	rec.TranscriptionStatus = domain.StatusDone
	p.persist(ctx, rec, "save transcribed text")
	p.events.TranscriptReady(rec.ID, text)
	return text, nil
}

// persist updates the recording, downgrading failures to warnings.
func (p *TranscriptionPipeline) persist(ctx context.Context, rec *domain.Recording, action string) {
	rec.UpdatedAt = time.Now()
	if err := p.store.Update(ctx, rec); err != nil {
		p.log.Warn().Err(err).Str("recordingId", rec.ID).Msgf("could not %s", action)
		p.events.Warning(domain.ErrorCodePersistence, fmt.Sprintf("could not %s: %v", action, err))
	}
}

func (p *TranscriptionPipeline) lockFor(id string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.inflight[id]
	if !ok {
		lock = &sync.Mutex{}
		p.inflight[id] = lock
	}
	return lock
}
