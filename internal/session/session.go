package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyCapture is returned by Finalize when the device produced no audio.
// The controller treats it as a terminal failure and never starts the pipeline.
var ErrEmptyCapture = errors.New("no audio captured")

// ErrFinalized is returned by Append once the buffer has been finalized.
var ErrFinalized = errors.New("session already finalized")

// Blob is the finalized recording: every captured segment concatenated in
// arrival order, tagged with the capture transport parameters.
type Blob struct {
	Data       []byte
	Codec      string
	SampleRate int
}

// Session holds the mutable state of one recording attempt. Exactly one
// Session exists at a time; the controller owns it exclusively.
type Session struct {
	ID        string
	Language  string
	StartedAt time.Time

	mu        sync.Mutex
	segments  [][]byte
	finalized bool
	blob      Blob
	cleared   bool
}

// New creates a session tagged with the transport parameters every finalized
// blob will carry.
func New(language, codec string, sampleRate int) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Language:  language,
		StartedAt: time.Now(),
		blob:      Blob{Codec: codec, SampleRate: sampleRate},
	}
}

// Append adds one captured segment. The controller only calls this while the
// session is recording; Append itself rejects writes after Finalize so a
// straggling capture event cannot corrupt the blob.
func (s *Session) Append(segment []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}
	buf := make([]byte, len(segment))
	copy(buf, segment)
	s.segments = append(s.segments, buf)
	return nil
}

// SegmentCount reports how many segments have arrived so far.
func (s *Session) SegmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}

// Finalize concatenates the segment sequence, in arrival order, into one
// encoded blob. It does not clear the segments; Clear owns that. Calling it
// again returns the same blob.
func (s *Session) Finalize() (Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return s.blob, nil
	}
	if len(s.segments) == 0 {
		return Blob{}, ErrEmptyCapture
	}
	total := 0
	for _, seg := range s.segments {
		total += len(seg)
	}
	data := make([]byte, 0, total)
	for _, seg := range s.segments {
		data = append(data, seg...)
	}
	s.blob.Data = data
	s.finalized = true
	return s.blob, nil
}

// Clear discards the segments and the finalized blob. It is idempotent, and
// the orchestrator guarantees it runs exactly once per pipeline run.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = nil
	s.blob.Data = nil
	s.cleared = true
}

// Cleared reports whether audio data has been discarded.
func (s *Session) Cleared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}
