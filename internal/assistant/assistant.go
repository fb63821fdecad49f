// Package assistant provides the text-generation collaborators the board
// delegates to: a coder that drafts a snippet from a task description, and a
// reviewer that writes notes on the result. Implementations are swappable
// without touching board logic.
package assistant

import (
	"context"
	"fmt"

	"github.com/tverenko/flowboard/internal/config"
)

// Coder generates a code snippet from a task description.
type Coder func(ctx context.Context, description string) (string, error)

// Reviewer generates review notes from a task description and the generated
// snippet (empty when generation failed).
type Reviewer func(ctx context.Context, description, snippet string) (string, error)

// New builds the coder and reviewer pair selected by cfg.Type.
func New(ctx context.Context, cfg config.AssistantConfig) (Coder, Reviewer, error) {
	switch cfg.Type {
	case "", "mock":
		return MockCoder, MockReviewer, nil
	case "openai":
		client, err := NewOpenAIClient(cfg, nil)
		if err != nil {
			return nil, nil, err
		}
		return client.Coder(), client.Reviewer(), nil
	case "gemini":
		client, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return client.Coder(), client.Reviewer(), nil
	}
	return nil, nil, fmt.Errorf("unknown assistant type %q", cfg.Type)
}

const coderInstructions = "You are a coding assistant on a kanban board. " +
	"Generate a minimal code snippet (skeleton plus doc comment) for the " +
	"task description you are given. Return only the code, no explanation."

const reviewerInstructions = "You are a code reviewer on a kanban board. " +
	"You are given a task description followed by a generated snippet. " +
	"Return short review notes: concrete issues first, or a one-line " +
	"approval if there are none."
