package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dictalabs/dicta-core/internal/deliver"
	"github.com/dictalabs/dicta-core/internal/refine"
	"github.com/dictalabs/dicta-core/internal/session"
	"github.com/dictalabs/dicta-core/internal/sessionstore"
	"github.com/dictalabs/dicta-core/internal/transcribe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const otelName = "github.com/dictalabs/dicta-core/internal/pipeline"

// Orchestrator sequences one finalized recording through transcription,
// refinement and delivery. A failed stage aborts the rest; the raw transcript
// is never delivered as a fallback. The session's audio is cleared exactly
// once per run, whatever the outcome.
type Orchestrator struct {
	recognizer transcribe.Recognizer
	refiner    refine.Refiner
	sink       deliver.Sink
	store      *sessionstore.Store
	logger     *slog.Logger

	tracer   trace.Tracer
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

func New(recognizer transcribe.Recognizer, refiner refine.Refiner, sink deliver.Sink, store *sessionstore.Store, logger *slog.Logger) *Orchestrator {
	meter := otel.Meter(otelName)
	runs, _ := meter.Int64Counter("dicta.pipeline.runs",
		metric.WithDescription("Completed pipeline runs by outcome"))
	duration, _ := meter.Float64Histogram("dicta.pipeline.duration",
		metric.WithDescription("Pipeline run duration"), metric.WithUnit("s"))

	return &Orchestrator{
		recognizer: recognizer,
		refiner:    refiner,
		sink:       sink,
		store:      store,
		logger:     logger.With(slog.String("component", "pipeline")),
		tracer:     otel.Tracer(otelName),
		runs:       runs,
		duration:   duration,
	}
}

// Run executes the pipeline for one session. The caller has already
// finalized the blob; Run owns clearing the session's audio.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, blob session.Blob) (deliveredText string, err error) {
	defer sess.Clear()

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("session.id", sess.ID)))
	defer span.End()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			span.RecordError(err)
		}
		o.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		o.duration.Record(ctx, time.Since(start).Seconds())
	}()

	raw, err := o.transcribeStage(ctx, sess, blob)
	if err != nil {
		return "", err
	}

	refined, err := o.refineStage(ctx, sess, raw)
	if err != nil {
		return "", err
	}

	if err := o.deliverStage(ctx, sess, refined); err != nil {
		return "", err
	}
	return refined, nil
}

func (o *Orchestrator) transcribeStage(ctx context.Context, sess *session.Session, blob session.Blob) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.transcribe")
	defer span.End()

	raw, err := o.recognizer.Transcribe(ctx, blob, sess.Language)
	if err != nil {
		o.record(ctx, sess.ID, "pipeline.failed", err.Error())
		return "", fmt.Errorf("transcription: %w", err)
	}
	// the refiner only ever sees a non-empty transcript; an empty string
	// would let it invent text with no spoken source
	if raw == "" {
		o.record(ctx, sess.ID, "pipeline.failed", transcribe.ErrNoTranscript.Error())
		return "", fmt.Errorf("transcription: %w", transcribe.ErrNoTranscript)
	}
	o.logger.Info("transcription complete",
		slog.String("session_id", sess.ID),
		slog.Int("transcript_chars", len(raw)))
	o.record(ctx, sess.ID, "pipeline.transcribed", "")
	return raw, nil
}

func (o *Orchestrator) refineStage(ctx context.Context, sess *session.Session, raw string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.refine")
	defer span.End()

	refined, err := o.refiner.Refine(ctx, raw)
	if err != nil {
		o.record(ctx, sess.ID, "pipeline.failed", err.Error())
		return "", fmt.Errorf("refinement: %w", err)
	}
	o.logger.Info("refinement complete",
		slog.String("session_id", sess.ID),
		slog.Int("refined_chars", len(refined)))
	o.record(ctx, sess.ID, "pipeline.refined", "")
	return refined, nil
}

func (o *Orchestrator) deliverStage(ctx context.Context, sess *session.Session, text string) error {
	ctx, span := o.tracer.Start(ctx, "pipeline.deliver")
	defer span.End()

	if err := o.sink.Replace(ctx, sess.ID, text); err != nil {
		o.record(ctx, sess.ID, "pipeline.failed", err.Error())
		return fmt.Errorf("delivery: %w", err)
	}
	o.record(ctx, sess.ID, "pipeline.delivered", "")
	return nil
}

func (o *Orchestrator) record(ctx context.Context, sessionID, eventType, detail string) {
	if err := o.store.AppendEvent(ctx, sessionID, eventType, detail); err != nil {
		o.logger.Warn("failed to record session event",
			slog.String("session_id", sessionID),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}
