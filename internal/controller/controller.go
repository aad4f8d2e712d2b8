package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dictalabs/dicta-core/internal/bus"
	"github.com/dictalabs/dicta-core/internal/capture"
	"github.com/dictalabs/dicta-core/internal/config"
	"github.com/dictalabs/dicta-core/internal/notify"
	"github.com/dictalabs/dicta-core/internal/pipeline"
	"github.com/dictalabs/dicta-core/internal/protocol"
	"github.com/dictalabs/dicta-core/internal/session"
	"github.com/dictalabs/dicta-core/internal/sessionstore"
	"github.com/nats-io/nats.go"
)

// State is the controller's public lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Controller owns the single recording session and drives it through the
// capture → transcription → refinement pipeline. The machine is cyclic:
// Idle → Recording → Processing → Idle, success or failure alike. Calls that
// do not match the current state are silent no-ops.
type Controller struct {
	captureCfg config.CaptureConfig
	language   string
	device     capture.Device
	pipeline   *pipeline.Orchestrator
	notifier   notify.Notifier
	store      *sessionstore.Store
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sub    *nats.Subscription
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	busy     bool // device opening or run finishing in flight
	sess     *session.Session
	stream   capture.Stream
	pumpDone chan struct{}
}

func New(parent context.Context, cfg config.Config, device capture.Device, orch *pipeline.Orchestrator, notifier notify.Notifier, store *sessionstore.Store, logger *slog.Logger) *Controller {
	ctx, cancel := context.WithCancel(parent)
	return &Controller{
		captureCfg: cfg.Capture,
		language:   cfg.Recognition.Language,
		device:     device,
		pipeline:   orch,
		notifier:   notifier,
		store:      store,
		logger:     logger.With(slog.String("component", "controller")),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the capture control subject so the host trigger can
// drive the controller over the bus. A nil client means bus control is off
// (direct method calls only).
func (c *Controller) Start(busClient *bus.Client) error {
	if busClient == nil {
		return nil
	}
	sub, err := busClient.Conn().Subscribe(protocol.SubjectCaptureControl, c.handleControl)
	if err != nil {
		return fmt.Errorf("subscribe capture control: %w", err)
	}
	c.sub = sub
	return nil
}

// Close stops bus control and waits for any in-flight run to settle.
func (c *Controller) Close() {
	c.cancel()
	if c.sub != nil {
		_ = c.sub.Drain()
	}
	c.wg.Wait()
}

// State reports the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) handleControl(msg *nats.Msg) {
	var cmd protocol.ControlCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		c.logger.Warn("failed to decode control command", slog.String("error", err.Error()))
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		switch cmd.Action {
		case protocol.ControlActionToggle:
			c.Toggle(c.ctx)
		case protocol.ControlActionStart:
			_ = c.StartRecording(c.ctx)
		case protocol.ControlActionStop:
			c.StopRecording(c.ctx)
		default:
			c.logger.Warn("unknown control action", slog.String("action", cmd.Action))
		}
	}()
}

// Toggle routes to start or stop depending on state; while a run is
// processing it does nothing.
func (c *Controller) Toggle(ctx context.Context) {
	switch c.State() {
	case StateIdle:
		_ = c.StartRecording(ctx)
	case StateRecording:
		c.StopRecording(ctx)
	case StateProcessing:
		// a run is settling; ignore
	}
}

// StartRecording requests the capture device and, once access is granted,
// creates the session and begins buffering segments. It suspends for the
// permission prompt. Anything but Idle makes it a silent no-op.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle || c.busy {
		c.mu.Unlock()
		return nil
	}
	c.busy = true
	c.mu.Unlock()

	stream, err := c.device.Open(ctx)
	if err != nil {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		c.logger.Error("capture device rejected", slog.String("error", err.Error()))
		c.notifier.Error(ctx, "", "Microphone unavailable: "+err.Error())
		return fmt.Errorf("open capture device: %w", err)
	}

	sess := session.New(c.language, c.captureCfg.Codec, c.captureCfg.SampleRate)
	pumpDone := make(chan struct{})

	c.mu.Lock()
	c.sess = sess
	c.stream = stream
	c.pumpDone = pumpDone
	c.state = StateRecording
	c.busy = false
	c.mu.Unlock()

	if err := c.store.BeginSession(ctx, sess.ID, sess.Language); err != nil {
		c.logger.Warn("failed to persist session start", slog.String("error", err.Error()))
	}
	if err := c.store.AppendEvent(ctx, sess.ID, "capture.started", ""); err != nil {
		c.logger.Warn("failed to record capture start", slog.String("error", err.Error()))
	}

	c.logger.Info("recording started", slog.String("session_id", sess.ID))
	c.notifier.Info(ctx, sess.ID, "Recording started")

	c.wg.Add(1)
	go c.pump(sess, stream, pumpDone)
	return nil
}

// pump is the only mutation path while recording: every segment the device
// pushes is appended in arrival order. It exits when the device closes the
// stream on stop.
func (c *Controller) pump(sess *session.Session, stream capture.Stream, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)
	for seg := range stream.Segments() {
		if err := sess.Append(seg.Data); err != nil {
			c.logger.Warn("dropping segment",
				slog.String("session_id", sess.ID),
				slog.Int("sequence", seg.Sequence),
				slog.String("error", err.Error()))
		}
	}
}

// StopRecording signals the device to flush and stop. The transition to
// Processing happens only when the device confirms completion; the pipeline
// then runs and the machine returns to Idle whatever the outcome. Anything
// but Recording makes it a silent no-op.
func (c *Controller) StopRecording(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateRecording || c.busy {
		c.mu.Unlock()
		return
	}
	c.busy = true
	sess := c.sess
	stream := c.stream
	pumpDone := c.pumpDone
	c.mu.Unlock()

	c.logger.Info("recording stopping", slog.String("session_id", sess.ID))
	c.notifier.Info(ctx, sess.ID, "Recording stopped, processing dictation")

	c.wg.Add(1)
	go c.finish(sess, stream, pumpDone)
}

func (c *Controller) finish(sess *session.Session, stream capture.Stream, pumpDone chan struct{}) {
	defer c.wg.Done()

	// wait for the device's flush confirmation, then for the buffer to
	// drain the closed segment channel
	<-stream.Stop()
	<-pumpDone

	if err := stream.Err(); err != nil {
		c.logger.Warn("capture stream reported error",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()))
	}

	c.mu.Lock()
	c.state = StateProcessing
	c.mu.Unlock()

	ctx := c.ctx
	if err := c.store.AppendEvent(ctx, sess.ID, "capture.stopped", ""); err != nil {
		c.logger.Warn("failed to record capture stop", slog.String("error", err.Error()))
	}

	outcome := "success"
	blob, err := sess.Finalize()
	switch {
	case err != nil:
		// nothing captured: terminal failure, the pipeline never runs
		sess.Clear()
		outcome = "empty"
		c.logger.Error("finalize failed", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
		c.notifier.Error(ctx, sess.ID, "No audio was captured")
	default:
		if _, runErr := c.pipeline.Run(ctx, sess, blob); runErr != nil {
			outcome = "failure"
			c.logger.Error("pipeline failed", slog.String("session_id", sess.ID), slog.String("error", runErr.Error()))
			c.notifier.Error(ctx, sess.ID, "Dictation failed: "+runErr.Error())
		}
	}

	if err := c.store.CompleteSession(ctx, sess.ID, outcome); err != nil {
		c.logger.Warn("failed to persist session outcome", slog.String("error", err.Error()))
	}

	c.mu.Lock()
	c.sess = nil
	c.stream = nil
	c.pumpDone = nil
	c.state = StateIdle
	c.busy = false
	c.mu.Unlock()

	c.logger.Info("session settled",
		slog.String("session_id", sess.ID),
		slog.String("outcome", outcome))
}
