package transcribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/dictalabs/dicta-core/internal/config"
	"github.com/dictalabs/dicta-core/internal/session"
)

// ErrNoTranscript means the recognition request succeeded but the service
// found nothing to transcribe.
var ErrNoTranscript = errors.New("recognition returned no transcript")

// ErrService covers transport failures, non-success statuses and responses
// the client cannot decode.
var ErrService = errors.New("recognition service failure")

// Recognizer converts one finalized recording into raw transcript text.
// Implementations issue a single request and never retry; the caller decides
// what a failure means.
type Recognizer interface {
	Transcribe(ctx context.Context, blob session.Blob, language string) (string, error)
}

// New builds a Recognizer from config.
func New(cfg config.RecognitionConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "google":
		return NewGoogleRecognizer(cfg), nil
	case "gcloud":
		return NewCloudRecognizer(cfg)
	case "mock", "":
		return NewMockRecognizer(""), nil
	default:
		return nil, fmt.Errorf("unknown recognition mode %q", cfg.Mode)
	}
}
