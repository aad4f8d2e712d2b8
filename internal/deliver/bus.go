package deliver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dictalabs/dicta-core/internal/bus"
	"github.com/dictalabs/dicta-core/internal/protocol"
)

// busSink publishes the refined text for the editing surface to consume.
type busSink struct {
	bus *bus.Client
}

func NewBusSink(busClient *bus.Client) Sink {
	return &busSink{bus: busClient}
}

func (s *busSink) Replace(_ context.Context, sessionID, text string) error {
	msg := protocol.DeliveredText{
		SessionID: sessionID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal delivered text: %w", err)
	}
	if err := s.bus.Conn().Publish(protocol.SubjectTextDelivered, data); err != nil {
		return fmt.Errorf("publish delivered text: %w", err)
	}
	return nil
}
