package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dictalabs/dicta-core/internal/config"
)

// ErrDeviceUnavailable covers permission denial and device failure at open.
var ErrDeviceUnavailable = errors.New("audio capture device unavailable")

// Segment is one chunk of encoded audio pushed by the device, in arrival order.
type Segment struct {
	Sequence int
	Data     []byte
}

// Stream is one live capture. The device pushes segments onto Segments;
// Stop asks the device to flush, and the returned channel closes once the
// flush is confirmed and the segment channel has been closed.
type Stream interface {
	Segments() <-chan Segment
	Stop() <-chan struct{}
	Err() error
}

// Device opens capture streams. Open suspends until the device grants or
// denies access; denial yields an error wrapping ErrDeviceUnavailable and
// no stream.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// New builds a Device from config.
func New(cfg config.CaptureConfig) (Device, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecDevice(cfg)
	case "mock", "":
		dev := NewMockDevice(nil)
		dev.Interval = time.Duration(cfg.SegmentMS) * time.Millisecond
		return dev, nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Mode)
	}
}
