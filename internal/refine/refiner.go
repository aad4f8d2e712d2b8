package refine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dictalabs/dicta-core/internal/config"
)

// ErrNotConfigured means no generative-service credential (or endpoint) is
// configured. Refine fails with it before any network call is attempted.
var ErrNotConfigured = errors.New("generative service not configured")

// ErrService covers request and service failures of the generative backend.
var ErrService = errors.New("generative service failure")

// Refiner turns a raw transcript into cleaned-up text. The output is returned
// verbatim; nothing is truncated or post-processed.
type Refiner interface {
	Refine(ctx context.Context, rawText string) (string, error)
}

const instruction = "Correct the grammar and spelling of the following text and improve its readability. " +
	"Do not add information and do not change its meaning. Return only the corrected text.\n\n"

// Prompt builds the fixed refinement instruction with the raw transcript
// embedded verbatim.
func Prompt(rawText string) string {
	return instruction + rawText
}

// New builds a Refiner from config.
func New(cfg config.RefineConfig) (Refiner, error) {
	switch cfg.Mode {
	case "openai":
		return NewOpenAIRefiner(cfg), nil
	case "ollama":
		return NewOllamaRefiner(cfg), nil
	case "mock", "":
		return NewMockRefiner(nil), nil
	default:
		return nil, fmt.Errorf("unknown refine mode %q", cfg.Mode)
	}
}
