package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dictalabs/dicta-core/internal/capture"
	"github.com/dictalabs/dicta-core/internal/config"
	"github.com/dictalabs/dicta-core/internal/deliver"
	"github.com/dictalabs/dicta-core/internal/notify"
	"github.com/dictalabs/dicta-core/internal/pipeline"
	"github.com/dictalabs/dicta-core/internal/refine"
	"github.com/dictalabs/dicta-core/internal/session"
	"github.com/dictalabs/dicta-core/internal/transcribe"
)

type failingRecognizer struct{ err error }

func (r failingRecognizer) Transcribe(context.Context, session.Blob, string) (string, error) {
	return "", r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, device capture.Device, rec transcribe.Recognizer, ref refine.Refiner) (*Controller, *deliver.MockSink, *notify.Recorder) {
	t.Helper()
	sink := &deliver.MockSink{}
	notices := &notify.Recorder{}
	orch := pipeline.New(rec, ref, sink, nil, discardLogger())
	c := New(context.Background(), config.Default(), device, orch, notices, nil, discardLogger())
	t.Cleanup(c.Close)
	return c, sink, notices
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("controller never reached state %v, stuck at %v", want, c.State())
}

func TestFullDictationRun(t *testing.T) {
	device := capture.NewMockDevice([][]byte{[]byte("seg-a"), []byte("seg-b")})
	rec := transcribe.NewMockRecognizer("test phrase")
	ref := refine.NewMockRefiner(func(string) string { return "Test phrase." })
	c, sink, notices := newTestController(t, device, rec, ref)

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if got := c.State(); got != StateRecording {
		t.Fatalf("state after start = %v, want recording", got)
	}

	c.StopRecording(context.Background())
	waitForState(t, c, StateIdle)

	calls := sink.Calls()
	if len(calls) != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", len(calls))
	}
	if calls[0] != "Test phrase." {
		t.Fatalf("delivered %q, want refined text", calls[0])
	}
	for _, n := range notices.Notices() {
		if n.Level == "error" {
			t.Fatalf("unexpected error notice: %q", n.Message)
		}
	}
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	device := capture.NewMockDevice(nil)
	c, sink, notices := newTestController(t, device,
		transcribe.NewMockRecognizer("x"), refine.NewMockRefiner(nil))

	c.StopRecording(context.Background())
	c.Toggle(context.Background()) // starts a session
	waitForState(t, c, StateRecording)
	c.Toggle(context.Background()) // stops it
	waitForState(t, c, StateIdle)
	c.StopRecording(context.Background())

	if len(sink.Calls()) != 0 {
		t.Fatalf("empty capture must not deliver, got %d deliveries", len(sink.Calls()))
	}
	started := 0
	for _, n := range notices.Notices() {
		if strings.Contains(n.Message, "Recording started") {
			started++
		}
	}
	if started != 1 {
		t.Fatalf("recording started %d times, want 1", started)
	}
}

func TestStartWhileRecordingKeepsSession(t *testing.T) {
	device := capture.NewMockDevice([][]byte{[]byte("seg")})
	c, _, notices := newTestController(t, device,
		transcribe.NewMockRecognizer("x"), refine.NewMockRefiner(nil))

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("second StartRecording must no-op, got %v", err)
	}

	started := 0
	for _, n := range notices.Notices() {
		if strings.Contains(n.Message, "Recording started") {
			started++
		}
	}
	if started != 1 {
		t.Fatalf("recording started %d times, want 1", started)
	}

	c.StopRecording(context.Background())
	waitForState(t, c, StateIdle)
}

func TestDeviceDenied(t *testing.T) {
	device := capture.NewMockDevice(nil)
	device.DenyAccess = true
	c, sink, notices := newTestController(t, device,
		transcribe.NewMockRecognizer("x"), refine.NewMockRefiner(nil))

	err := c.StartRecording(context.Background())
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("StartRecording error = %v, want ErrDeviceUnavailable", err)
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("state after denial = %v, want idle", got)
	}
	if len(sink.Calls()) != 0 {
		t.Fatalf("denied capture must not deliver")
	}
	found := false
	for _, n := range notices.Notices() {
		if n.Level == "error" {
			found = true
		}
	}
	if !found {
		t.Fatal("device denial should surface an error notice")
	}
}

func TestEmptyCaptureSkipsPipeline(t *testing.T) {
	device := capture.NewMockDevice(nil)
	rec := failingRecognizer{err: errors.New("recognizer must not be called")}
	c, sink, notices := newTestController(t, device, rec, refine.NewMockRefiner(nil))

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	c.StopRecording(context.Background())
	waitForState(t, c, StateIdle)

	if len(sink.Calls()) != 0 {
		t.Fatalf("empty capture must not deliver")
	}
	found := false
	for _, n := range notices.Notices() {
		if n.Level == "error" && strings.Contains(n.Message, "No audio") {
			found = true
		}
	}
	if !found {
		t.Fatal("empty capture should surface a terminal failure notice")
	}
}

func TestTranscriptionFailureReturnsToIdle(t *testing.T) {
	device := capture.NewMockDevice([][]byte{[]byte("seg")})
	rec := failingRecognizer{err: transcribe.ErrService}
	c, sink, notices := newTestController(t, device, rec, refine.NewMockRefiner(nil))

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	c.StopRecording(context.Background())
	waitForState(t, c, StateIdle)

	if len(sink.Calls()) != 0 {
		t.Fatalf("failed run must not deliver")
	}
	found := false
	for _, n := range notices.Notices() {
		if n.Level == "error" && strings.Contains(n.Message, "Dictation failed") {
			found = true
		}
	}
	if !found {
		t.Fatal("pipeline failure should surface a terminal failure notice")
	}

	// the machine is reusable after a failure
	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	c.StopRecording(context.Background())
	waitForState(t, c, StateIdle)
}
