package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"murmur/internal/domain"
	"murmur/internal/logging"
	"murmur/internal/ports"
)

// SegmentHandler processes one detected speech segment. Handlers run on
// their own goroutine, detached from the listening session's lifecycle.
type SegmentHandler func(ctx context.Context, audio []byte)

// VadSessionConfig controls the voice-activated listening session.
type VadSessionConfig struct {
	Params         ports.SessionParams
	FasterRerecord bool
}

// VadSessionManager owns the voice-activated capture lifecycle. In
// SESSION+RECORDING the device is continuously listening; every speech
// segment the capture detects is handed to the segment handler
// fire-and-forget, so closing the session never cancels in-flight segment
// pipelines.
type VadSessionManager struct {
	capture ports.VadCapture
	states  *StateStore
	events  ports.EventSink
	handler SegmentHandler
	cfg     VadSessionConfig
	log     zerolog.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewVadSessionManager(capture ports.VadCapture, states *StateStore, events ports.EventSink, handler SegmentHandler, cfg VadSessionConfig) *VadSessionManager {
	return &VadSessionManager{
		capture: capture,
		states:  states,
		events:  events,
		handler: handler,
		cfg:     cfg,
		log:     logging.WithComponent("vad"),
	}
}

// State returns the current listening lifecycle state.
func (m *VadSessionManager) State() domain.RecorderState {
	return m.states.Get()
}

// Start opens the device if needed and begins listening.
func (m *VadSessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.states.Get() {
	case domain.StateSessionRecording:
		return domain.ErrAlreadyRecording
	case domain.StateIdle:
		if err := m.capture.Open(ctx, m.cfg.Params, m.onSegment); err != nil {
			m.events.Error(domain.ErrorCodeDevice, err.Error())
			return fmt.Errorf("%w: %w", domain.ErrDeviceAcquisition, err)
		}
		m.setState(domain.StateSession)
	}

	if err := m.capture.Start(ctx); err != nil {
		m.events.Error(domain.ErrorCodeCapture, err.Error())
		return fmt.Errorf("%w: %w", domain.ErrStartRecording, err)
	}
	m.setState(domain.StateSessionRecording)
	return nil
}

// Stop ends the listening session. Segments already being processed keep
// running. Unless faster-rerecord is enabled the device is also released; a
// failed release is a warning-class error.
func (m *VadSessionManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states.Get() != domain.StateSessionRecording {
		return domain.ErrStopNotRecording
	}
	if err := m.capture.Stop(ctx); err != nil {
		m.events.Error(domain.ErrorCodeCapture, err.Error())
		return fmt.Errorf("failed to stop listening: %w", err)
	}
	m.setState(domain.StateSession)

	if m.cfg.FasterRerecord {
		return nil
	}
	return m.closeLocked(ctx)
}

// Close releases the device. Closing an idle session is a no-op.
func (m *VadSessionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked(ctx)
}

// Wait blocks until all in-flight segment pipelines have finished. Used at
// shutdown and in tests; the session itself never waits on segments.
func (m *VadSessionManager) Wait() {
	m.wg.Wait()
}

func (m *VadSessionManager) closeLocked(ctx context.Context) error {
	if m.states.Get() == domain.StateIdle {
		return nil
	}
	err := m.capture.Close(ctx)
	m.setState(domain.StateIdle)
	if err != nil {
		m.log.Warn().Err(err).Msg("device release failed")
		m.events.Warning(domain.ErrorCodeSessionClose, err.Error())
		return domain.Warnf("failed to close listening session: %w", err)
	}
	return nil
}

// onSegment dispatches one detected speech segment. The handler gets a
// background context on purpose: session teardown must not cancel a segment
// that is already in the pipeline.
func (m *VadSessionManager) onSegment(audio []byte) {
	if len(audio) == 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.handler(context.Background(), audio)
	}()
}

func (m *VadSessionManager) setState(state domain.RecorderState) {
	m.states.set(state)
	m.events.RecorderStateChanged(state)
}
