package refine

import "context"

type mockRefiner struct {
	fn func(string) string
}

// NewMockRefiner returns a refiner applying fn, or the identity when fn is
// nil.
func NewMockRefiner(fn func(string) string) Refiner {
	return &mockRefiner{fn: fn}
}

func (m *mockRefiner) Refine(_ context.Context, rawText string) (string, error) {
	if m.fn != nil {
		return m.fn(rawText), nil
	}
	return rawText, nil
}
