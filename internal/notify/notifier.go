package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dictalabs/dicta-core/internal/bus"
	"github.com/dictalabs/dicta-core/internal/protocol"
)

// Notifier surfaces user-visible notices: capture started, capture stopped,
// terminal failures. Idle no-ops never notify.
type Notifier interface {
	Info(ctx context.Context, sessionID, message string)
	Error(ctx context.Context, sessionID, message string)
}

// New builds a Notifier from the configured mode.
func New(mode string, busClient *bus.Client, logger *slog.Logger) (Notifier, error) {
	switch mode {
	case "bus":
		if busClient == nil {
			return nil, fmt.Errorf("notify mode bus requires a bus connection")
		}
		return &busNotifier{bus: busClient, logger: logger}, nil
	case "log", "":
		return &logNotifier{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", mode)
	}
}

type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Info(_ context.Context, sessionID, message string) {
	n.logger.Info(message, slog.String("session_id", sessionID), slog.String("channel", "user"))
}

func (n *logNotifier) Error(_ context.Context, sessionID, message string) {
	n.logger.Error(message, slog.String("session_id", sessionID), slog.String("channel", "user"))
}

type busNotifier struct {
	bus    *bus.Client
	logger *slog.Logger
}

func (n *busNotifier) Info(ctx context.Context, sessionID, message string) {
	n.publish(ctx, sessionID, "info", message)
}

func (n *busNotifier) Error(ctx context.Context, sessionID, message string) {
	n.publish(ctx, sessionID, "error", message)
}

func (n *busNotifier) publish(_ context.Context, sessionID, level, message string) {
	msg := protocol.Notification{
		SessionID: sessionID,
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		n.logger.Warn("failed to marshal notification", slog.String("error", err.Error()))
		return
	}
	if err := n.bus.Conn().Publish(protocol.SubjectNotification, data); err != nil {
		n.logger.Warn("failed to publish notification", slog.String("error", err.Error()))
	}
}

// Recorder is a test notifier capturing every notice.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notice is one recorded notification.
type Notice struct {
	Level     string
	SessionID string
	Message   string
}

func (r *Recorder) Info(_ context.Context, sessionID, message string) {
	r.record("info", sessionID, message)
}

func (r *Recorder) Error(_ context.Context, sessionID, message string) {
	r.record("error", sessionID, message)
}

func (r *Recorder) record(level, sessionID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, SessionID: sessionID, Message: message})
}

// Notices returns the recorded notices in order.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}
