package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

// Built-in prompt templates used when a step leaves its templates blank.
const (
	defaultSystemPromptTemplate = `You clean up speech-to-text transcriptions. Fix punctuation, casing and obvious recognition mistakes without changing the meaning or adding content. Respect the user's vocabulary: {{vocabulary}}. Reply with the corrected text only.`
	defaultUserPromptTemplate   = `{{input}}`
)

// stepExecutor runs one step kind. Executors are stateless and selected by
// step type from a lookup table.
type stepExecutor interface {
	Execute(ctx context.Context, input string, step domain.TransformationStep) (string, error)
}

type findReplaceExecutor struct{}

func (findReplaceExecutor) Execute(_ context.Context, input string, step domain.TransformationStep) (string, error) {
	if !step.UseRegex {
		return strings.ReplaceAll(input, step.FindText, step.ReplaceText), nil
	}
	re, err := regexp.Compile(step.FindText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPattern, err)
	}
	return re.ReplaceAllString(input, step.ReplaceText), nil
}

type promptExecutor struct {
	providers  map[domain.ProviderName]ports.PromptProvider
	vocabulary string
}

func (e promptExecutor) Execute(ctx context.Context, input string, step domain.TransformationStep) (string, error) {
	provider, ok := e.providers[step.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownProvider, step.Provider)
	}

	systemPrompt := renderPrompt(step.SystemPromptTemplate, defaultSystemPromptTemplate, input, e.vocabulary)
	userPrompt := renderPrompt(step.UserPromptTemplate, defaultUserPromptTemplate, input, e.vocabulary)

	completion, err := provider.Complete(ctx, systemPrompt, userPrompt, step.Model)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", step.Provider, err)
	}
	completion = strings.TrimSpace(completion)
	if completion == "" {
		return "", domain.ErrEmptyCompletion
	}
	return completion, nil
}

func renderPrompt(template, fallback, input, vocabulary string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		template = fallback
	}
	return strings.NewReplacer(
		"{{input}}", input,
		"{{vocabulary}}", vocabulary,
	).Replace(template)
}
