package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// LLMService is the text generation service interface.
// The capability is optional: callers must treat an absent service as a
// structured failure, never a panic.
type LLMService interface {
	// Complete performs a single system+user completion and returns the
	// raw model output.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type llmService struct {
	client        *openai.Client
	model         string
	fallbackModel string
	maxTokens     int
	temperature   float32
	limiter       *rate.Limiter
}

// NewLLMService creates a new LLMService.
func NewLLMService(cfg *GenerationConfig) (LLMService, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: generation API key or base URL required", ErrNotConfigured)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: generation model required", ErrNotConfigured)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &llmService{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		maxTokens:     maxTokens,
		temperature:   cfg.Temperature,
		// 5 requests per second with burst of 10, shared across callers.
		limiter: rate.NewLimiter(rate.Every(time.Second/5), 10),
	}, nil
}

func (s *llmService) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	content, err := s.complete(ctx, s.model, systemPrompt, userPrompt)
	if err != nil && s.fallbackModel != "" && ctx.Err() == nil {
		slog.Warn("primary generation model failed, trying fallback",
			"model", s.model,
			"fallback", s.fallbackModel,
			"error", err)
		content, err = s.complete(ctx, s.fallbackModel, systemPrompt, userPrompt)
	}
	if err != nil {
		return "", err
	}

	slog.Debug("generation completed",
		"model", s.model,
		"latency_ms", time.Since(start).Milliseconds())
	return content, nil
}

func (s *llmService) complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}

	return resp.Choices[0].Message.Content, nil
}
