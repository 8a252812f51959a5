package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"murmur/internal/domain"
)

func newVadManager(t *testing.T, capture *fakeVadCapture, handler SegmentHandler, cfg VadSessionConfig) (*VadSessionManager, *fakeEventSink) {
	t.Helper()
	events := &fakeEventSink{}
	m := NewVadSessionManager(capture, NewStateStore(), events, handler, cfg)
	return m, events
}

func TestVadLifecycle(t *testing.T) {
	capture := &fakeVadCapture{}
	m, _ := newVadManager(t, capture, func(context.Context, []byte) {}, VadSessionConfig{})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := m.State(); got != domain.StateSessionRecording {
		t.Fatalf("state = %q, want %q", got, domain.StateSessionRecording)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := m.State(); got != domain.StateIdle {
		t.Fatalf("state after stop = %q, want %q", got, domain.StateIdle)
	}
	if capture.closeCalls != 1 {
		t.Errorf("device close calls = %d, want 1", capture.closeCalls)
	}
}

func TestVadStartWhileListeningFails(t *testing.T) {
	m, _ := newVadManager(t, &fakeVadCapture{}, func(context.Context, []byte) {}, VadSessionConfig{})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(ctx); !errors.Is(err, domain.ErrAlreadyRecording) {
		t.Fatalf("error = %v, want ErrAlreadyRecording", err)
	}
}

func TestVadStopWithoutListeningFails(t *testing.T) {
	m, _ := newVadManager(t, &fakeVadCapture{}, func(context.Context, []byte) {}, VadSessionConfig{})

	if err := m.Stop(context.Background()); !errors.Is(err, domain.ErrStopNotRecording) {
		t.Fatalf("error = %v, want ErrStopNotRecording", err)
	}
}

func TestVadSegmentsDispatchedToHandler(t *testing.T) {
	capture := &fakeVadCapture{}

	var mu sync.Mutex
	var segments []string
	handler := func(_ context.Context, audio []byte) {
		mu.Lock()
		segments = append(segments, string(audio))
		mu.Unlock()
	}

	m, _ := newVadManager(t, capture, handler, VadSessionConfig{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	capture.emit([]byte("segment-1"))
	capture.emit([]byte("segment-2"))
	capture.emit(nil) // empty segments are dropped
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(segments) != 2 {
		t.Fatalf("segments = %v, want 2", segments)
	}
}

func TestVadSegmentsSurviveClose(t *testing.T) {
	capture := &fakeVadCapture{}

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	completed := 0
	handler := func(ctx context.Context, _ []byte) {
		close(started)
		<-release
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		completed++
		mu.Unlock()
	}

	m, _ := newVadManager(t, capture, handler, VadSessionConfig{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	capture.emit([]byte("in-flight"))
	<-started

	// Tear the session down while the segment is still processing.
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(release)
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	if completed != 1 {
		t.Fatalf("completed segments = %d, want 1 (teardown canceled the pipeline)", completed)
	}
}

func TestVadFasterRerecordKeepsDeviceOpen(t *testing.T) {
	capture := &fakeVadCapture{}
	m, _ := newVadManager(t, capture, func(context.Context, []byte) {}, VadSessionConfig{FasterRerecord: true})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := m.State(); got != domain.StateSession {
		t.Fatalf("state = %q, want %q", got, domain.StateSession)
	}
	if capture.closeCalls != 0 {
		t.Errorf("device close calls = %d, want 0", capture.closeCalls)
	}
}

func TestVadCloseFailureIsWarning(t *testing.T) {
	capture := &fakeVadCapture{closeErr: errors.New("driver hung")}
	m, events := newVadManager(t, capture, func(context.Context, []byte) {}, VadSessionConfig{})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := m.Stop(ctx)
	if err == nil || !domain.IsWarning(err) {
		t.Fatalf("error = %v, want warning-class", err)
	}
	if got := m.State(); got != domain.StateIdle {
		t.Fatalf("state = %q, want %q", got, domain.StateIdle)
	}
	warnings := events.snapshotWarnings()
	if len(warnings) != 1 || warnings[0].code != domain.ErrorCodeSessionClose {
		t.Fatalf("warnings = %v, want one session_close warning", warnings)
	}
}

func TestVadCloseIdempotent(t *testing.T) {
	capture := &fakeVadCapture{}
	m, _ := newVadManager(t, capture, func(context.Context, []byte) {}, VadSessionConfig{})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if capture.closeCalls != 1 {
		t.Fatalf("device close calls = %d, want 1", capture.closeCalls)
	}
}
