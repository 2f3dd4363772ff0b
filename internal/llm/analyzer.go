// Package llm provides the text analyzer the pipeline submits prompts to.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/homelabrg/codelens/common/logger"
)

// ErrorMarker prefixes analyzer responses that represent a soft failure.
// Callers record such responses as stage errors instead of raising them.
const ErrorMarker = "Error:"

// IsSoftFailure reports whether an analyzer response carries the reserved
// error marker.
func IsSoftFailure(result string) bool {
	return strings.HasPrefix(result, ErrorMarker)
}

// Analyzer submits one natural-language prompt and returns the model's text.
// Implementations may be slow, cached, or fail.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

const (
	systemPrompt = "You are a source code analysis assistant."
	maxAttempts  = 3
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

type openAIAnalyzer struct {
	openai      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIAnalyzer creates an analyzer backed by the OpenAI chat API.
func NewOpenAIAnalyzer(cfg Config) (Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	return &openAIAnalyzer{
		openai:      openai.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (a *openAIAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(a.maxTokens)),
		Temperature: openai.Float(a.temperature),
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff between attempts
			wait := time.Duration(1<<attempt) * time.Second
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		start := time.Now()
		resp, err := a.openai.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if !isRetryable(ctx, err) {
				return "", fmt.Errorf("openai chat: %w", err)
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		slog.DebugContext(ctx, "llm analyze completed",
			"model", a.model,
			"duration_ms", time.Since(start).Milliseconds(),
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"prompt", logger.Truncate(prompt, 80))

		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("openai chat after %d attempts: %w", maxAttempts, lastErr)
}

func isRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			slog.WarnContext(ctx, "llm rate limited, will retry",
				"status_code", apiErr.StatusCode)
			return true
		case apiErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error, will retry",
				"status_code", apiErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"status_code", apiErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code)
			return false
		}
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "llm network error, will retry", "error", err)
	return true
}
