package transcribe

import (
	"context"
	"fmt"

	"github.com/dictalabs/dicta-core/internal/session"
)

type mockRecognizer struct {
	text string
}

// NewMockRecognizer returns a recognizer that yields the given text, or a
// synthetic transcript describing the blob when text is empty.
func NewMockRecognizer(text string) Recognizer {
	return &mockRecognizer{text: text}
}

func (m *mockRecognizer) Transcribe(_ context.Context, blob session.Blob, language string) (string, error) {
	if m.text != "" {
		return m.text, nil
	}
	return fmt.Sprintf("[%s transcript of %d %s bytes]", language, len(blob.Data), blob.Codec), nil
}
