package domain

import "time"

// RecorderState models the capture session lifecycle.
type RecorderState string

const (
	StateIdle             RecorderState = "IDLE"
	StateSession          RecorderState = "SESSION"
	StateSessionRecording RecorderState = "SESSION+RECORDING"
)

// InSession reports whether a device is currently held open.
func (s RecorderState) InSession() bool {
	return s == StateSession || s == StateSessionRecording
}

// TranscriptionStatus tracks a recording through the transcription pipeline.
type TranscriptionStatus string

const (
	StatusUnprocessed  TranscriptionStatus = "UNPROCESSED"
	StatusTranscribing TranscriptionStatus = "TRANSCRIBING"
	StatusDone         TranscriptionStatus = "DONE"
	StatusFailed       TranscriptionStatus = "FAILED"
)

// Recording is one finalized captured utterance and its transcription state.
// Audio may be empty when capture failed before finalization.
type Recording struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Subtitle            string              `json:"subtitle"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
	Audio               []byte              `json:"-"`
	TranscribedText     string              `json:"transcribedText"`
	TranscriptionStatus TranscriptionStatus `json:"transcriptionStatus"`
}

// StepType identifies a transformation step kind.
type StepType string

const (
	StepFindReplace     StepType = "find_replace"
	StepPromptTransform StepType = "prompt_transform"
)

// ProviderName selects an LLM completion provider for prompt steps.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "OpenAI"
	ProviderGroq      ProviderName = "Groq"
	ProviderAnthropic ProviderName = "Anthropic"
	ProviderOllama    ProviderName = "Ollama"
)

// TransformationStep is one user-authored text-processing step. Which fields
// are meaningful depends on Type.
type TransformationStep struct {
	ID   string   `json:"id"`
	Type StepType `json:"type"`

	FindText    string `json:"findText"`
	ReplaceText string `json:"replaceText"`
	UseRegex    bool   `json:"useRegex"`

	Provider             ProviderName `json:"provider"`
	Model                string       `json:"model"`
	SystemPromptTemplate string       `json:"systemPromptTemplate"`
	UserPromptTemplate   string       `json:"userPromptTemplate"`
}

// Transformation is a named, ordered list of steps. The core only reads
// transformations; authoring and persistence live outside it.
type Transformation struct {
	ID    string               `json:"id"`
	Title string               `json:"title"`
	Steps []TransformationStep `json:"steps"`
}

// StepRun records one step attempt inside a transformation run.
type StepRun struct {
	Index       int        `json:"index"`
	Input       string     `json:"input"`
	Output      string     `json:"output"`
	Error       string     `json:"error"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// TransformationRun is the audit record of one transformation execution.
// Once terminal, exactly one of Output/Error is set.
type TransformationRun struct {
	ID               string     `json:"id"`
	TransformationID string     `json:"transformationId"`
	RecordingID      string     `json:"recordingId"`
	Input            string     `json:"input"`
	Output           string     `json:"output"`
	Error            string     `json:"error"`
	StepRuns         []StepRun  `json:"stepRuns"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt"`
}

// Failed reports whether the run reached a terminal failure.
func (r *TransformationRun) Failed() bool { return r.Error != "" }

// DeliveryStatus summarizes which output operations succeeded.
type DeliveryStatus string

const (
	DeliveryNone            DeliveryStatus = "NONE"
	DeliveryCopied          DeliveryStatus = "COPIED"
	DeliveryPasted          DeliveryStatus = "PASTED"
	DeliveryCopiedAndPasted DeliveryStatus = "COPIED+PASTED"
)

// DeliveryOptions selects which output channels to attempt.
type DeliveryOptions struct {
	Copy  bool
	Paste bool
}

// Severity grades user-visible notifications.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a fire-and-forget status message for the user.
type Notification struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// ErrorCode identifies error classes surfaced to event consumers.
type ErrorCode string

const (
	ErrorCodeDevice        ErrorCode = "device"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeTransform     ErrorCode = "transform"
	ErrorCodePersistence   ErrorCode = "persistence"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodeCursor        ErrorCode = "cursor"
	ErrorCodeSessionClose  ErrorCode = "session_close"
)
