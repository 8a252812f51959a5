package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"murmur/internal/domain"
	"murmur/internal/logging"
	"murmur/internal/ports"
)

// ErrManagerClosed is returned for operations submitted after Close.
var ErrManagerClosed = errors.New("session manager is closed")

// SessionConfig controls push-to-talk session behavior.
type SessionConfig struct {
	Params ports.SessionParams
	// FasterRerecord keeps the device open after stop/cancel so the next
	// recording skips device acquisition.
	FasterRerecord bool
}

// StopResult carries the finalized capture out of StopRecording.
type StopResult struct {
	RecordingID string
	Audio       []byte
}

// SessionManager owns the push-to-talk capture lifecycle. All transitions
// run on a single goroutine fed by a command queue, so overlapping calls
// are serialized and can never race the state.
type SessionManager struct {
	capture ports.Capture
	states  *StateStore
	events  ports.EventSink
	cfg     SessionConfig
	log     zerolog.Logger

	commands chan func()
	done     chan struct{}

	// recordingID is touched only on the command loop goroutine.
	recordingID string
}

func NewSessionManager(capture ports.Capture, states *StateStore, events ports.EventSink, cfg SessionConfig) *SessionManager {
	m := &SessionManager{
		capture:  capture,
		states:   states,
		events:   events,
		cfg:      cfg,
		log:      logging.WithComponent("session"),
		commands: make(chan func()),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *SessionManager) loop() {
	for {
		select {
		case cmd := <-m.commands:
			cmd()
		case <-m.done:
			return
		}
	}
}

// Close stops the command loop. Pending operations already submitted run to
// completion; later submissions fail with ErrManagerClosed.
func (m *SessionManager) Close() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// State returns the current lifecycle state.
func (m *SessionManager) State() domain.RecorderState {
	return m.states.Get()
}

// do runs fn on the command loop and waits for its result.
func (m *SessionManager) do(ctx context.Context, fn func(ctx context.Context) error) error {
	reply := make(chan error, 1)
	select {
	case m.commands <- func() { reply <- fn(ctx) }:
	case <-m.done:
		return ErrManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrManagerClosed
	}
}

// EnsureSession opens the input device if no session is active. A no-op when
// a session is already open. On failure the state stays IDLE.
func (m *SessionManager) EnsureSession(ctx context.Context, status ports.StatusFunc) error {
	return m.do(ctx, func(ctx context.Context) error {
		if m.states.Get().InSession() {
			return nil
		}
		report(status, "acquiring input device")
		if err := m.capture.OpenDevice(ctx, m.cfg.Params, status); err != nil {
			m.events.Error(domain.ErrorCodeDevice, err.Error())
			return fmt.Errorf("%w: %w", domain.ErrDeviceAcquisition, err)
		}
		m.setState(domain.StateSession)
		return nil
	})
}

// StartRecording begins capturing within an open session. It fails with
// ErrAlreadyRecording when a capture is active and ErrNoSession when no
// device is held; on an underlying start failure the device stays open.
func (m *SessionManager) StartRecording(ctx context.Context, status ports.StatusFunc) (string, error) {
	var recordingID string
	err := m.do(ctx, func(ctx context.Context) error {
		switch m.states.Get() {
		case domain.StateSessionRecording:
			return domain.ErrAlreadyRecording
		case domain.StateIdle:
			return domain.ErrNoSession
		}
		token := uuid.NewString()
		report(status, "starting capture")
		if err := m.capture.Start(ctx, token, status); err != nil {
			m.events.Error(domain.ErrorCodeCapture, err.Error())
			return fmt.Errorf("%w: %w", domain.ErrStartRecording, err)
		}
		m.recordingID = token
		recordingID = token
		m.setState(domain.StateSessionRecording)
		return nil
	})
	if err != nil {
		return "", err
	}
	return recordingID, nil
}

// StopRecording finalizes the active capture and returns its audio artifact.
// Afterwards the session stays open under faster-rerecord, otherwise the
// device is released. A failed release is returned as a warning-class error
// alongside a valid result.
func (m *SessionManager) StopRecording(ctx context.Context, status ports.StatusFunc) (StopResult, error) {
	var result StopResult
	err := m.do(ctx, func(ctx context.Context) error {
		if m.states.Get() != domain.StateSessionRecording {
			return domain.ErrStopNotRecording
		}
		report(status, "finalizing capture")
		audio, err := m.capture.Stop(ctx, status)
		if err != nil {
			m.events.Error(domain.ErrorCodeCapture, err.Error())
			return fmt.Errorf("failed to stop recording: %w", err)
		}
		result = StopResult{RecordingID: m.recordingID, Audio: audio}
		m.recordingID = ""
		return m.settle(ctx, status)
	})
	return result, err
}

// CancelRecording discards the in-progress capture without finalizing it.
// Session teardown follows the same policy as StopRecording.
func (m *SessionManager) CancelRecording(ctx context.Context, status ports.StatusFunc) error {
	return m.do(ctx, func(ctx context.Context) error {
		if m.states.Get() != domain.StateSessionRecording {
			return domain.ErrCancelNotRecording
		}
		report(status, "discarding capture")
		if err := m.capture.Cancel(ctx, status); err != nil {
			m.events.Error(domain.ErrorCodeCapture, err.Error())
			return fmt.Errorf("failed to cancel recording: %w", err)
		}
		m.recordingID = ""
		return m.settle(ctx, status)
	})
}

// CloseSession releases the input device. Closing an already-idle session is
// a no-op. A failed release is reported as a warning-class error and the
// state still drops to IDLE: the device is assumed gone either way.
func (m *SessionManager) CloseSession(ctx context.Context, status ports.StatusFunc) error {
	return m.do(ctx, func(ctx context.Context) error {
		return m.closeLocked(ctx, status)
	})
}

// settle applies the post-stop/post-cancel session policy on the loop
// goroutine.
func (m *SessionManager) settle(ctx context.Context, status ports.StatusFunc) error {
	if m.cfg.FasterRerecord {
		m.setState(domain.StateSession)
		return nil
	}
	return m.closeLocked(ctx, status)
}

func (m *SessionManager) closeLocked(ctx context.Context, status ports.StatusFunc) error {
	if m.states.Get() == domain.StateIdle {
		return nil
	}
	report(status, "releasing input device")
	err := m.capture.CloseDevice(ctx, status)
	m.setState(domain.StateIdle)
	if err != nil {
		m.log.Warn().Err(err).Msg("device release failed")
		m.events.Warning(domain.ErrorCodeSessionClose, err.Error())
		return domain.Warnf("failed to close recording session: %w", err)
	}
	return nil
}

func (m *SessionManager) setState(state domain.RecorderState) {
	m.states.set(state)
	m.events.RecorderStateChanged(state)
}

func report(status ports.StatusFunc, phase string) {
	if status != nil {
		status(phase)
	}
}
