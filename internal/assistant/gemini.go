package assistant

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/tverenko/flowboard/internal/config"
)

const (
	geminiDefaultAPIKeyEnv = "GEMINI_API_KEY"
	geminiDefaultModel     = "gemini-2.0-flash"
)

// GeminiClient wraps the Gemini API for oneshot coder and reviewer calls.
type GeminiClient struct {
	model  string
	client *genai.Client
}

// NewGeminiClient constructs a Gemini-backed assistant client.
func NewGeminiClient(ctx context.Context, cfg config.AssistantConfig) (*GeminiClient, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = geminiDefaultModel
	}

	envKey := strings.TrimSpace(cfg.APIKeyEnv)
	if envKey == "" {
		envKey = geminiDefaultAPIKeyEnv
	}
	apiKey := strings.TrimSpace(os.Getenv(envKey))
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required (set %s)", envKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{model: model, client: client}, nil
}

// Coder returns the snippet-generation collaborator.
func (c *GeminiClient) Coder() Coder {
	return func(ctx context.Context, description string) (string, error) {
		return c.complete(ctx, coderInstructions+"\n\nTask description:\n"+description)
	}
}

// Reviewer returns the review-notes collaborator.
func (c *GeminiClient) Reviewer() Reviewer {
	return func(ctx context.Context, description, snippet string) (string, error) {
		prompt := fmt.Sprintf("%s\n\nTask description:\n%s\n\nGenerated snippet:\n%s",
			reviewerInstructions, description, snippet)
		return c.complete(ctx, prompt)
	}
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	output := strings.TrimSpace(resp.Text())
	if output == "" {
		return "", fmt.Errorf("gemini response did not contain text")
	}
	return output, nil
}
