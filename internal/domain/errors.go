package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session lifecycle and pipelines. Callers match
// with errors.Is; adapters wrap underlying causes with %w.
var (
	ErrDeviceAcquisition    = errors.New("could not acquire input device")
	ErrNoSession            = errors.New("no open recording session")
	ErrAlreadyRecording     = errors.New("a recording is already in progress")
	ErrStartRecording       = errors.New("failed to start recording")
	ErrStopNotRecording     = errors.New("cannot stop: no recording in progress")
	ErrCancelNotRecording   = errors.New("cannot cancel: no recording in progress")
	ErrMissingAudio         = errors.New("recording has no audio artifact")
	ErrNoInput              = errors.New("transformation input is empty")
	ErrNoStepsConfigured    = errors.New("transformation has no steps configured")
	ErrInvalidPattern       = errors.New("invalid find/replace pattern")
	ErrEmptyCompletion      = errors.New("provider returned an empty completion")
	ErrUnknownProvider      = errors.New("unknown completion provider")
	ErrUnknownStepType      = errors.New("unknown transformation step type")
	ErrTranscriptionTimeout = errors.New("transcription timed out")
)

// Warning wraps a failure that must be surfaced but must not halt the
// operation that produced it, such as a device release failing after the
// recording itself already finalized.
type Warning struct {
	Err error
}

func (w *Warning) Error() string { return "warning: " + w.Err.Error() }

func (w *Warning) Unwrap() error { return w.Err }

// Warn wraps err as warning-class. A nil err stays nil.
func Warn(err error) error {
	if err == nil {
		return nil
	}
	return &Warning{Err: err}
}

// Warnf wraps a formatted error as warning-class.
func Warnf(format string, args ...any) error {
	return &Warning{Err: fmt.Errorf(format, args...)}
}

// IsWarning reports whether err is warning-class rather than blocking.
func IsWarning(err error) bool {
	var w *Warning
	return errors.As(err, &w)
}
