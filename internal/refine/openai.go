package refine

import (
	"context"
	"fmt"
	"time"

	"github.com/dictalabs/dicta-core/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// openaiRefiner sends the refinement prompt as a single-message chat
// completion. The model identifier comes from config with a fixed default.
type openaiRefiner struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

func NewOpenAIRefiner(cfg config.RefineConfig) Refiner {
	return &openaiRefiner{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
	}
}

func (r *openaiRefiner) Refine(ctx context.Context, rawText string) (string, error) {
	if r.apiKey == "" {
		return "", ErrNotConfigured
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	client := openai.NewClient(r.apiKey)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: Prompt(rawText),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrService)
	}
	return resp.Choices[0].Message.Content, nil
}
