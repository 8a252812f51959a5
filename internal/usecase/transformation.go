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

// TransformInput carries the text to transform and, when it came from a
// recording, the recording id for run-log correlation.
type TransformInput struct {
	Text        string
	RecordingID string
}

// TransformationPipeline executes a transformation's steps strictly in
// order, recording per-step and per-run outcomes. The first step failure
// short-circuits the run.
type TransformationPipeline struct {
	executors map[domain.StepType]stepExecutor
	runs      ports.RunStore
	events    ports.EventSink
	log       zerolog.Logger
}

func NewTransformationPipeline(providers map[domain.ProviderName]ports.PromptProvider, vocabulary string, runs ports.RunStore, events ports.EventSink) *TransformationPipeline {
	return &TransformationPipeline{
		executors: map[domain.StepType]stepExecutor{
			domain.StepFindReplace:     findReplaceExecutor{},
			domain.StepPromptTransform: promptExecutor{providers: providers, vocabulary: vocabulary},
		},
		runs:   runs,
		events: events,
		log:    logging.WithComponent("transformation"),
	}
}

// Run executes t against input. The returned run is terminal: either Output
// or Error is set. Precondition failures return a nil run and mutate no run
// log; a step failure returns the failed run together with the step's error.
func (p *TransformationPipeline) Run(ctx context.Context, input TransformInput, t domain.Transformation) (*domain.TransformationRun, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, domain.ErrNoInput
	}
	if len(t.Steps) == 0 {
		return nil, domain.ErrNoStepsConfigured
	}

	run := &domain.TransformationRun{
		ID:               uuid.NewString(),
		TransformationID: t.ID,
		RecordingID:      input.RecordingID,
		Input:            input.Text,
		StartedAt:        time.Now(),
	}

	current := input.Text
	for i, step := range t.Steps {
		run.StepRuns = append(run.StepRuns, domain.StepRun{
			Index:     i,
			Input:     current,
			StartedAt: time.Now(),
		})

		output, err := p.executeStep(ctx, step, current)

		completed := time.Now()
		stepRun := &run.StepRuns[len(run.StepRuns)-1]
		stepRun.CompletedAt = &completed

		if err != nil {
			stepRun.Error = err.Error()
			run.Error = fmt.Sprintf("step %d (%s): %v", i+1, step.Type, err)
			run.CompletedAt = &completed
			p.persistRun(ctx, run)
			p.events.Error(domain.ErrorCodeTransform, run.Error)
			return run, fmt.Errorf("step %d (%s): %w", i+1, step.Type, err)
		}

		stepRun.Output = output
		current = output
	}

	completed := time.Now()
	run.Output = current
	run.CompletedAt = &completed
	p.persistRun(ctx, run)
	return run, nil
}

func (p *TransformationPipeline) executeStep(ctx context.Context, step domain.TransformationStep, input string) (string, error) {
	executor, ok := p.executors[step.Type]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownStepType, step.Type)
	}
	return executor.Execute(ctx, input, step)
}

// persistRun saves the run log best-effort; a failure to record history must
// not fail the transformation itself.
func (p *TransformationPipeline) persistRun(ctx context.Context, run *domain.TransformationRun) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Save(ctx, run); err != nil {
		p.log.Warn().Err(err).Str("runId", run.ID).Msg("could not persist transformation run")
		p.events.Warning(domain.ErrorCodePersistence, fmt.Sprintf("could not persist transformation run: %v", err))
	}
}
