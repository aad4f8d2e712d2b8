package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dictalabs/dicta-core/internal/bus"
	"github.com/dictalabs/dicta-core/internal/capture"
	"github.com/dictalabs/dicta-core/internal/config"
	"github.com/dictalabs/dicta-core/internal/controller"
	"github.com/dictalabs/dicta-core/internal/deliver"
	"github.com/dictalabs/dicta-core/internal/natsserver"
	"github.com/dictalabs/dicta-core/internal/notify"
	"github.com/dictalabs/dicta-core/internal/pipeline"
	"github.com/dictalabs/dicta-core/internal/refine"
	"github.com/dictalabs/dicta-core/internal/sessionstore"
	"github.com/dictalabs/dicta-core/internal/transcribe"
)

// Runtime supervises the daemon: telemetry, the message bus, the session
// store, the mode-selected backends, and the recording controller. Start
// blocks until the context is cancelled, then tears everything down in
// reverse order.
type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	telemetry     *telemetry
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetry = tel

	var embedded *natsserver.EmbeddedServer
	if r.cfg.Bus.Embedded {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		defer embedded.Shutdown()
	}

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := sessionstore.Open(ctx, r.cfg.SessionStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Prune(ctx); err != nil {
		r.logger.Warn("session store prune failed", slog.String("error", err.Error()))
	}

	device, err := capture.New(r.cfg.Capture)
	if err != nil {
		return fmt.Errorf("failed to build capture device: %w", err)
	}
	recognizer, err := transcribe.New(r.cfg.Recognition)
	if err != nil {
		return fmt.Errorf("failed to build recognizer: %w", err)
	}
	refiner, err := refine.New(r.cfg.Refine)
	if err != nil {
		return fmt.Errorf("failed to build refiner: %w", err)
	}
	sink, err := deliver.New(r.cfg.Delivery, busClient)
	if err != nil {
		return fmt.Errorf("failed to build delivery sink: %w", err)
	}
	notifier, err := notify.New(r.cfg.Notify.Mode, busClient, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build notifier: %w", err)
	}

	orch := pipeline.New(recognizer, refiner, sink, store, r.logger)
	ctrl := controller.New(ctx, r.cfg, device, orch, notifier, store, r.logger)
	if err := ctrl.Start(busClient); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}
	defer ctrl.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if tel.metrics != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", tel.metrics)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("capture_mode", r.cfg.Capture.Mode),
		slog.String("recognition_mode", r.cfg.Recognition.Mode),
		slog.String("refine_mode", r.cfg.Refine.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.telemetry != nil {
		if err := r.telemetry.shutdown(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
