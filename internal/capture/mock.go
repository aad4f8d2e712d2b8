package capture

import (
	"context"
	"sync"
	"time"
)

// MockDevice stands in for a real microphone. With canned segments it emits
// them (paced by Interval when set) and then waits for Stop; with none and a
// positive Interval it synthesizes one placeholder segment per tick until
// stopped, so a full capture run works without a recorder process. With
// neither it emits nothing, which exercises the empty-capture path.
type MockDevice struct {
	// DenyAccess simulates the user rejecting the permission prompt.
	DenyAccess bool
	// Interval is the cadence between emitted segments.
	Interval time.Duration

	canned [][]byte
}

func NewMockDevice(segments [][]byte) *MockDevice {
	return &MockDevice{canned: segments}
}

func (d *MockDevice) Open(_ context.Context) (Stream, error) {
	if d.DenyAccess {
		return nil, ErrDeviceUnavailable
	}
	s := &mockStream{
		segments: make(chan Segment, len(d.canned)+1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.emit(d.canned, d.Interval)
	return s, nil
}

type mockStream struct {
	segments chan Segment
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *mockStream) Segments() <-chan Segment { return s.segments }

// emit owns the segment channel: it closes segments, then done, once the
// stream is stopped. done is the flush confirmation.
func (s *mockStream) emit(canned [][]byte, interval time.Duration) {
	defer close(s.done)
	defer close(s.segments)

	if len(canned) == 0 && interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		seq := 0
		for {
			select {
			case <-ticker.C:
				select {
				case s.segments <- Segment{Sequence: seq, Data: []byte("mock-audio")}:
					seq++
				case <-s.stop:
					return
				}
			case <-s.stop:
				return
			}
		}
	}

	for i, data := range canned {
		if interval > 0 {
			select {
			case <-time.After(interval):
			case <-s.stop:
				return
			}
		}
		s.segments <- Segment{Sequence: i, Data: data}
	}
	<-s.stop
}

func (s *mockStream) Stop() <-chan struct{} {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return s.done
}

func (s *mockStream) Err() error { return nil }
