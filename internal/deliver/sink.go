package deliver

import (
	"context"
	"fmt"

	"github.com/dictalabs/dicta-core/internal/bus"
	"github.com/dictalabs/dicta-core/internal/config"
)

// Sink receives the refined text. Replace substitutes the current selection
// or cursor position of the active document with the given string; the
// orchestrator calls it at most once per successful run.
type Sink interface {
	Replace(ctx context.Context, sessionID, text string) error
}

// New builds a Sink from config. The bus mode needs a connected bus client.
func New(cfg config.DeliveryConfig, busClient *bus.Client) (Sink, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecSink(cfg.Command)
	case "bus":
		if busClient == nil {
			return nil, fmt.Errorf("delivery mode bus requires a bus connection")
		}
		return NewBusSink(busClient), nil
	case "mock", "":
		return &MockSink{}, nil
	default:
		return nil, fmt.Errorf("unknown delivery mode %q", cfg.Mode)
	}
}
