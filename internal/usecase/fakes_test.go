package usecase

import (
	"context"
	"errors"
	"sync"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

type fakeCapture struct {
	mu    sync.Mutex
	state domain.RecorderState

	openErr   error
	startErr  error
	stopErr   error
	cancelErr error
	closeErr  error

	audio []byte

	openCalls   int
	startCalls  int
	stopCalls   int
	cancelCalls int
	closeCalls  int

	lastToken string
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{state: domain.StateIdle, audio: []byte("wav-bytes")}
}

func (f *fakeCapture) OpenDevice(_ context.Context, _ ports.SessionParams, _ ports.StatusFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	if f.openErr != nil {
		return f.openErr
	}
	f.state = domain.StateSession
	return nil
}

func (f *fakeCapture) Start(_ context.Context, token string, _ ports.StatusFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	f.lastToken = token
	f.state = domain.StateSessionRecording
	return nil
}

func (f *fakeCapture) Stop(_ context.Context, _ ports.StatusFunc) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	f.state = domain.StateSession
	return f.audio, nil
}

func (f *fakeCapture) Cancel(_ context.Context, _ ports.StatusFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.state = domain.StateSession
	return nil
}

func (f *fakeCapture) CloseDevice(_ context.Context, _ ports.StatusFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.closeErr != nil {
		return f.closeErr
	}
	f.state = domain.StateIdle
	return nil
}

func (f *fakeCapture) State() domain.RecorderState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

type fakeVadCapture struct {
	mu        sync.Mutex
	state     domain.RecorderState
	onSegment ports.SegmentFunc

	openErr  error
	startErr error
	stopErr  error
	closeErr error

	closeCalls int
}

func (f *fakeVadCapture) Open(_ context.Context, _ ports.SessionParams, onSegment ports.SegmentFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.onSegment = onSegment
	f.state = domain.StateSession
	return nil
}

func (f *fakeVadCapture) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.state = domain.StateSessionRecording
	return nil
}

func (f *fakeVadCapture) Stop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.state = domain.StateSession
	return nil
}

func (f *fakeVadCapture) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.closeErr != nil {
		return f.closeErr
	}
	f.state = domain.StateIdle
	return nil
}

func (f *fakeVadCapture) State() domain.RecorderState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeVadCapture) emit(audio []byte) {
	f.mu.Lock()
	onSegment := f.onSegment
	f.mu.Unlock()
	if onSegment != nil {
		onSegment(audio)
	}
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	// byAudio lets concurrent tests map artifacts to distinct texts.
	byAudio map[string]string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ ports.TranscribeOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.byAudio != nil {
		if text, ok := f.byAudio[string(audio)]; ok {
			return text, nil
		}
	}
	return f.text, nil
}

type fakeProvider struct {
	mu          sync.Mutex
	completion  string
	err         error
	lastSystem  string
	lastUser    string
	lastModel   string
	invocations int
}

func (f *fakeProvider) Complete(_ context.Context, systemPrompt, userPrompt, model string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invocations++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	f.lastModel = model
	if f.err != nil {
		return "", f.err
	}
	return f.completion, nil
}

type fakeClipboard struct {
	mu       sync.Mutex
	err      error
	calls    int
	lastText string
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastText = text
	return f.err
}

type fakeCursor struct {
	mu       sync.Mutex
	err      error
	calls    int
	lastText string
}

func (f *fakeCursor) WriteAtCursor(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastText = text
	return f.err
}

type fakeRecordingStore struct {
	mu        sync.Mutex
	createErr error
	updateErr error

	recordings  map[string]domain.Recording
	createCalls int
	updateCalls int
}

func newFakeRecordingStore() *fakeRecordingStore {
	return &fakeRecordingStore{recordings: make(map[string]domain.Recording)}
}

func (f *fakeRecordingStore) Create(_ context.Context, rec *domain.Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.recordings[rec.ID] = *rec
	return nil
}

func (f *fakeRecordingStore) Update(_ context.Context, rec *domain.Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.recordings[rec.ID] = *rec
	return nil
}

func (f *fakeRecordingStore) Get(_ context.Context, id string) (*domain.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return nil, errors.New("recording not found")
	}
	return &rec, nil
}

func (f *fakeRecordingStore) Delete(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.recordings, id)
	}
	return nil
}

func (f *fakeRecordingStore) List(_ context.Context) ([]domain.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Recording, 0, len(f.recordings))
	for _, rec := range f.recordings {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRecordingStore) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls + f.updateCalls
}

func (f *fakeRecordingStore) get(id string) (domain.Recording, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	return rec, ok
}

type fakeRunStore struct {
	mu      sync.Mutex
	saveErr error
	runs    []domain.TransformationRun
}

func (f *fakeRunStore) Save(_ context.Context, run *domain.TransformationRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.runs = append([]domain.TransformationRun{*run}, f.runs...)
	return nil
}

func (f *fakeRunStore) ListByTransformation(_ context.Context, transformationID string) ([]domain.TransformationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TransformationRun
	for _, run := range f.runs {
		if run.TransformationID == transformationID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (f *fakeRunStore) ListByRecording(_ context.Context, recordingID string) ([]domain.TransformationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TransformationRun
	for _, run := range f.runs {
		if run.RecordingID == recordingID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (f *fakeRunStore) saved() []domain.TransformationRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TransformationRun, len(f.runs))
	copy(out, f.runs)
	return out
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

func (f *fakeNotifier) Notify(n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

func (f *fakeNotifier) bySeverity(severity domain.Severity) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.notifications {
		if n.Severity == severity {
			out = append(out, n)
		}
	}
	return out
}

type sinkError struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu         sync.Mutex
	states     []domain.RecorderState
	statuses   []string
	transcript []string
	deliveries []domain.DeliveryStatus
	warnings   []sinkError
	errors     []sinkError
}

func (f *fakeEventSink) RecorderStateChanged(state domain.RecorderState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeEventSink) Status(phase string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, phase)
}

func (f *fakeEventSink) TranscriptReady(recordingID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = append(f.transcript, text)
}

func (f *fakeEventSink) Delivered(status domain.DeliveryStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, status)
}

func (f *fakeEventSink) Warning(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, sinkError{code: code, detail: detail})
}

func (f *fakeEventSink) Error(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, sinkError{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []domain.RecorderState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RecorderState, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotWarnings() []sinkError {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sinkError, len(f.warnings))
	copy(out, f.warnings)
	return out
}
