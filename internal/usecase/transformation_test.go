package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

func newTransformationPipeline(providers map[domain.ProviderName]ports.PromptProvider, runs ports.RunStore) *TransformationPipeline {
	return NewTransformationPipeline(providers, "Murmur, zerolog", runs, &fakeEventSink{})
}

func TestRunFindReplace(t *testing.T) {
	p := newTransformationPipeline(nil, &fakeRunStore{})

	run, err := p.Run(context.Background(), TransformInput{Text: "foo baz foo"}, domain.Transformation{
		ID: "t-1",
		Steps: []domain.TransformationStep{
			{Type: domain.StepFindReplace, FindText: "foo", ReplaceText: "bar"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Output != "bar baz bar" {
		t.Errorf("output = %q, want %q", run.Output, "bar baz bar")
	}
	if run.Failed() {
		t.Errorf("run marked failed: %q", run.Error)
	}
	if run.CompletedAt == nil {
		t.Error("run not marked completed")
	}
}

func TestRunRegexReplace(t *testing.T) {
	p := newTransformationPipeline(nil, &fakeRunStore{})

	run, err := p.Run(context.Background(), TransformInput{Text: "order 12 and 345"}, domain.Transformation{
		Steps: []domain.TransformationStep{
			{Type: domain.StepFindReplace, FindText: `\d+`, ReplaceText: "#", UseRegex: true},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Output != "order # and #" {
		t.Errorf("output = %q, want %q", run.Output, "order # and #")
	}
}

func TestRunInvalidRegexFailsStep(t *testing.T) {
	runs := &fakeRunStore{}
	p := newTransformationPipeline(nil, runs)

	run, err := p.Run(context.Background(), TransformInput{Text: "input"}, domain.Transformation{
		Steps: []domain.TransformationStep{
			{Type: domain.StepFindReplace, FindText: "([unclosed", UseRegex: true},
		},
	})
	if !errors.Is(err, domain.ErrInvalidPattern) {
		t.Fatalf("error = %v, want ErrInvalidPattern", err)
	}
	if run == nil || !run.Failed() {
		t.Fatal("failed run not returned")
	}
	if len(runs.saved()) != 1 {
		t.Errorf("persisted runs = %d, want 1", len(runs.saved()))
	}
}

func TestRunChainsStepsInOrder(t *testing.T) {
	provider := &fakeProvider{completion: "Polished text."}
	p := newTransformationPipeline(map[domain.ProviderName]ports.PromptProvider{
		domain.ProviderOpenAI: provider,
	}, &fakeRunStore{})

	run, err := p.Run(context.Background(), TransformInput{Text: "raw teh text"}, domain.Transformation{
		Steps: []domain.TransformationStep{
			{Type: domain.StepFindReplace, FindText: "teh", ReplaceText: "the"},
			{Type: domain.StepPromptTransform, Provider: domain.ProviderOpenAI, Model: "gpt-4o-mini"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Output != "Polished text." {
		t.Errorf("output = %q, want %q", run.Output, "Polished text.")
	}
	if len(run.StepRuns) != 2 {
		t.Fatalf("step runs = %d, want 2", len(run.StepRuns))
	}
	// The second step sees the first step's output, not the original input.
	if run.StepRuns[1].Input != "raw the text" {
		t.Errorf("second step input = %q, want %q", run.StepRuns[1].Input, "raw the text")
	}
	if provider.lastModel != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", provider.lastModel, "gpt-4o-mini")
	}
	if !strings.Contains(provider.lastUser, "raw the text") {
		t.Errorf("user prompt %q does not carry the step input", provider.lastUser)
	}
	if !strings.Contains(provider.lastSystem, "Murmur, zerolog") {
		t.Errorf("system prompt %q does not carry the vocabulary", provider.lastSystem)
	}
}

func TestRunShortCircuitsOnFirstFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	runs := &fakeRunStore{}
	p := newTransformationPipeline(map[domain.ProviderName]ports.PromptProvider{
		domain.ProviderGroq: provider,
	}, runs)

	run, err := p.Run(context.Background(), TransformInput{Text: "input", RecordingID: "rec-9"}, domain.Transformation{
		Steps: []domain.TransformationStep{
			{Type: domain.StepPromptTransform, Provider: domain.ProviderGroq},
			{Type: domain.StepFindReplace, FindText: "a", ReplaceText: "b"},
		},
	})
	if err == nil {
		t.Fatal("Run returned nil error")
	}
	if run == nil {
		t.Fatal("Run returned nil run")
	}
	// Only the failed step was attempted and logged.
	if len(run.StepRuns) != 1 {
		t.Fatalf("step runs = %d, want 1", len(run.StepRuns))
	}
	if run.StepRuns[0].Error == "" {
		t.Error("failed step has empty error")
	}
	if run.Output != "" {
		t.Errorf("failed run has output %q", run.Output)
	}
	if !strings.Contains(run.Error, "step 1") {
		t.Errorf("run error %q does not name the failed step", run.Error)
	}
	saved := runs.saved()
	if len(saved) != 1 || saved[0].RecordingID != "rec-9" {
		t.Errorf("persisted runs = %v, want one for rec-9", saved)
	}
}

func TestRunEmptyInputMutatesNothing(t *testing.T) {
	runs := &fakeRunStore{}
	p := newTransformationPipeline(nil, runs)

	run, err := p.Run(context.Background(), TransformInput{Text: "   "}, domain.Transformation{
		Steps: []domain.TransformationStep{{Type: domain.StepFindReplace}},
	})
	if !errors.Is(err, domain.ErrNoInput) {
		t.Fatalf("error = %v, want ErrNoInput", err)
	}
	if run != nil {
		t.Errorf("run = %v, want nil", run)
	}
	if len(runs.saved()) != 0 {
		t.Errorf("persisted runs = %d, want 0", len(runs.saved()))
	}
}

func TestRunNoStepsMutatesNothing(t *testing.T) {
	runs := &fakeRunStore{}
	p := newTransformationPipeline(nil, runs)

	run, err := p.Run(context.Background(), TransformInput{Text: "input"}, domain.Transformation{})
	if !errors.Is(err, domain.ErrNoStepsConfigured) {
		t.Fatalf("error = %v, want ErrNoStepsConfigured", err)
	}
	if run != nil {
		t.Errorf("run = %v, want nil", run)
	}
	if len(runs.saved()) != 0 {
		t.Errorf("persisted runs = %d, want 0", len(runs.saved()))
	}
}

func TestRunUnknownProviderFails(t *testing.T) {
	p := newTransformationPipeline(nil, &fakeRunStore{})

	_, err := p.Run(context.Background(), TransformInput{Text: "input"}, domain.Transformation{
		Steps: []domain.TransformationStep{
			{Type: domain.StepPromptTransform, Provider: domain.ProviderAnthropic},
		},
	})
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("error = %v, want ErrUnknownProvider", err)
	}
}

func TestRunEmptyCompletionFails(t *testing.T) {
	provider := &fakeProvider{completion: "  \n "}
	p := newTransformationPipeline(map[domain.ProviderName]ports.PromptProvider{
		domain.ProviderOllama: provider,
	}, &fakeRunStore{})

	_, err := p.Run(context.Background(), TransformInput{Text: "input"}, domain.Transformation{
		Steps: []domain.TransformationStep{
			{Type: domain.StepPromptTransform, Provider: domain.ProviderOllama},
		},
	})
	if !errors.Is(err, domain.ErrEmptyCompletion) {
		t.Fatalf("error = %v, want ErrEmptyCompletion", err)
	}
}

func TestRunCustomPromptTemplates(t *testing.T) {
	provider := &fakeProvider{completion: "ok"}
	p := newTransformationPipeline(map[domain.ProviderName]ports.PromptProvider{
		domain.ProviderOpenAI: provider,
	}, &fakeRunStore{})

	_, err := p.Run(context.Background(), TransformInput{Text: "dictated"}, domain.Transformation{
		Steps: []domain.TransformationStep{
			{
				Type:                 domain.StepPromptTransform,
				Provider:             domain.ProviderOpenAI,
				SystemPromptTemplate: "Vocab: {{vocabulary}}",
				UserPromptTemplate:   "Rewrite: {{input}}",
			},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if provider.lastSystem != "Vocab: Murmur, zerolog" {
		t.Errorf("system prompt = %q", provider.lastSystem)
	}
	if provider.lastUser != "Rewrite: dictated" {
		t.Errorf("user prompt = %q", provider.lastUser)
	}
}
