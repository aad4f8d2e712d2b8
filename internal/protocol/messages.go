package protocol

import "time"

// ControlCommand asks the controller to change capture state. Published by
// the host trigger (menu item, hotkey daemon) on SubjectCaptureControl.
type ControlCommand struct {
	Action    string    `json:"action"` // toggle, start, stop
	Timestamp time.Time `json:"timestamp"`
}

// Notification is a user-visible notice forwarded to whatever UI surface
// subscribes to it.
type Notification struct {
	SessionID string    `json:"session_id,omitempty"`
	Level     string    `json:"level"` // info, error
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliveredText carries the refined transcript for the editing surface.
type DeliveredText struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ControlActionToggle = "toggle"
	ControlActionStart  = "start"
	ControlActionStop   = "stop"

	SubjectCaptureControl = "dicta.capture.control"
	SubjectNotification   = "dicta.ui.notification"
	SubjectTextDelivered  = "dicta.text.delivered"
)
