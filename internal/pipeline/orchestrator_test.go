package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dictalabs/dicta-core/internal/deliver"
	"github.com/dictalabs/dicta-core/internal/refine"
	"github.com/dictalabs/dicta-core/internal/session"
	"github.com/dictalabs/dicta-core/internal/transcribe"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type failingRecognizer struct{ err error }

func (f *failingRecognizer) Transcribe(context.Context, session.Blob, string) (string, error) {
	return "", f.err
}

type countingRefiner struct {
	calls int
	out   string
	err   error
}

func (c *countingRefiner) Refine(_ context.Context, raw string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if c.out != "" {
		return c.out, nil
	}
	return raw, nil
}

func newSessionWithAudio(t *testing.T) (*session.Session, session.Blob) {
	t.Helper()
	sess := session.New("en-US", "WEBM_OPUS", 48000)
	if err := sess.Append([]byte("audio")); err != nil {
		t.Fatalf("append: %v", err)
	}
	blob, err := sess.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return sess, blob
}

func TestRunSuccessDeliversOnceAndClears(t *testing.T) {
	sess, blob := newSessionWithAudio(t)
	sink := &deliver.MockSink{}
	refiner := &countingRefiner{out: "Test phrase."}
	o := New(transcribe.NewMockRecognizer("test phrase"), refiner, sink, nil, newLogger())

	text, err := o.Run(context.Background(), sess, blob)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if text != "Test phrase." {
		t.Fatalf("unexpected delivered text %q", text)
	}
	calls := sink.Calls()
	if len(calls) != 1 || calls[0] != "Test phrase." {
		t.Fatalf("expected exactly one delivery of refined text, got %v", calls)
	}
	if !sess.Cleared() {
		t.Fatal("session not cleared after success")
	}
}

func TestRunTranscriptionFailureSkipsRefinerAndSink(t *testing.T) {
	sess, blob := newSessionWithAudio(t)
	sink := &deliver.MockSink{}
	refiner := &countingRefiner{}
	o := New(&failingRecognizer{err: transcribe.ErrNoTranscript}, refiner, sink, nil, newLogger())

	_, err := o.Run(context.Background(), sess, blob)
	if !errors.Is(err, transcribe.ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
	if refiner.calls != 0 {
		t.Fatalf("refiner called %d times after transcription failure", refiner.calls)
	}
	if len(sink.Calls()) != 0 {
		t.Fatal("sink invoked after transcription failure")
	}
	if !sess.Cleared() {
		t.Fatal("session not cleared after failure")
	}
}

func TestRunEmptyTranscriptNeverReachesRefiner(t *testing.T) {
	sess, blob := newSessionWithAudio(t)
	sink := &deliver.MockSink{}
	refiner := &countingRefiner{out: "ghost"}
	// a recognizer that reports success with an empty transcript
	o := New(&failingRecognizer{}, refiner, sink, nil, newLogger())

	_, err := o.Run(context.Background(), sess, blob)
	if !errors.Is(err, transcribe.ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript for empty transcript, got %v", err)
	}
	if refiner.calls != 0 {
		t.Fatalf("refiner called %d times on an empty transcript", refiner.calls)
	}
	if len(sink.Calls()) != 0 {
		t.Fatalf("sink received %v despite empty transcript", sink.Calls())
	}
	if !sess.Cleared() {
		t.Fatal("session not cleared after empty transcript")
	}
}

func TestRunRefinementFailureNeverDeliversRawTranscript(t *testing.T) {
	sess, blob := newSessionWithAudio(t)
	sink := &deliver.MockSink{}
	refiner := &countingRefiner{err: refine.ErrNotConfigured}
	o := New(transcribe.NewMockRecognizer("helo wrld"), refiner, sink, nil, newLogger())

	_, err := o.Run(context.Background(), sess, blob)
	if !errors.Is(err, refine.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if len(sink.Calls()) != 0 {
		t.Fatal("raw transcript delivered despite refinement failure")
	}
	if !sess.Cleared() {
		t.Fatal("session not cleared after refinement failure")
	}
}

func TestRunDeliveryFailureStillClears(t *testing.T) {
	sess, blob := newSessionWithAudio(t)
	sink := &deliver.MockSink{Err: errors.New("editor gone")}
	o := New(transcribe.NewMockRecognizer("test phrase"), &countingRefiner{}, sink, nil, newLogger())

	if _, err := o.Run(context.Background(), sess, blob); err == nil {
		t.Fatal("expected delivery error")
	}
	if !sess.Cleared() {
		t.Fatal("session not cleared after delivery failure")
	}
}
