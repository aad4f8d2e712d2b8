package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dictalabs/dicta-core/internal/config"
)

// ollamaRefiner runs the refinement prompt against a local ollama endpoint.
// Non-streaming: one request, one completion string.
type ollamaRefiner struct {
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	client      *http.Client
}

func NewOllamaRefiner(cfg config.RefineConfig) Refiner {
	return &ollamaRefiner{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		client:      http.DefaultClient,
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (r *ollamaRefiner) Refine(ctx context.Context, rawText string) (string, error) {
	if r.endpoint == "" {
		return "", ErrNotConfigured
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	payload := ollamaRequest{
		Model:  r.model,
		Prompt: Prompt(rawText),
		Stream: false,
		Options: ollamaOptions{
			Temperature: r.temperature,
			NumPredict:  r.maxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %s", ErrService, resp.Status)
	}

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrService, err)
	}
	return decoded.Response, nil
}
