package assistant

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/tverenko/flowboard/internal/config"
)

const (
	openaiDefaultAPIKeyEnv = "OPENAI_API_KEY"
	openaiDefaultBaseURL   = "https://api.openai.com/v1"
	openaiDefaultModel     = "gpt-4o-mini"
	openaiDefaultTimeout   = 60 * time.Second
)

// OpenAIClient wraps the OpenAI responses API for oneshot coder and reviewer
// calls.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient constructs an OpenAI-backed assistant client.
func NewOpenAIClient(cfg config.AssistantConfig, httpClient *http.Client) (*OpenAIClient, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openaiDefaultModel
	}

	envKey := strings.TrimSpace(cfg.APIKeyEnv)
	if envKey == "" {
		envKey = openaiDefaultAPIKeyEnv
	}
	apiKey := strings.TrimSpace(os.Getenv(envKey))
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required (set %s)", envKey)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = openaiDefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithRequestTimeout(timeout),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAIClient{
		model:  model,
		client: openai.NewClient(opts...),
	}, nil
}

// Coder returns the snippet-generation collaborator.
func (c *OpenAIClient) Coder() Coder {
	return func(ctx context.Context, description string) (string, error) {
		return c.complete(ctx, coderInstructions, "Task description:\n"+description)
	}
}

// Reviewer returns the review-notes collaborator.
func (c *OpenAIClient) Reviewer() Reviewer {
	return func(ctx context.Context, description, snippet string) (string, error) {
		input := fmt.Sprintf("Task description:\n%s\n\nGenerated snippet:\n%s", description, snippet)
		return c.complete(ctx, reviewerInstructions, input)
	}
}

func (c *OpenAIClient) complete(ctx context.Context, instructions, input string) (string, error) {
	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        c.model,
		Instructions: openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(input),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai responses.create: %w", err)
	}
	if msg := strings.TrimSpace(resp.Error.Message); msg != "" {
		return "", fmt.Errorf("openai response failed: %s", msg)
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return "", fmt.Errorf("openai response did not contain output text")
	}
	return output, nil
}
