package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/go-neuriplo/internal/config"
	"github.com/example/go-neuriplo/internal/inference"
	"github.com/example/go-neuriplo/internal/protocol"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxBodyBytes   int64
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxBodyBytes:   64 << 20,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxBodyBytes caps the request body size for POST /infer.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBodyBytes = n }
}

// WithRequestTimeout sets the per-request inference deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests. Request
// counters track POST /infer calls only; /health and /stats are free.
type handler struct {
	engine inference.Engine
	opts   options
	log    *slog.Logger

	inferMu        sync.Mutex // serializes engine access
	totalRequests  atomic.Uint64
	failedRequests atomic.Uint64
}

// NewHandler returns an http.Handler serving /health, /model_info,
// /infer, and /stats.
func NewHandler(engine inference.Engine, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		engine: engine,
		opts:   opts,
		log:    opts.logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/model_info", h.handleModelInfo)
	mux.HandleFunc("/infer", h.handleInfer)
	mux.HandleFunc("/stats", h.handleStats)
	mux.HandleFunc("/", h.handleNotFound)
	return mux
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResponse{
		Status:        "healthy",
		GPUAvailable:  h.engine.GPUAvailable(),
		ModelPath:     h.engine.ModelPath(),
		TotalRequests: h.totalRequests.Load(),
	})
}

func (h *handler) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	meta, err := h.engine.Metadata()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

func (h *handler) handleInfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.totalRequests.Add(1)
	start := time.Now()

	if r.Body == nil {
		h.failedRequests.Add(1)
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.opts.maxBodyBytes)

	var req protocol.InferRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.failedRequests.Add(1)
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := req.InputBlob.Validate(); err != nil {
		h.failedRequests.Add(1)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := req.InputBlob.Bytes()
	if err != nil {
		h.failedRequests.Add(1)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	// One request on the engine at a time; the session is not reentrant.
	h.inferMu.Lock()
	outputs, err := h.engine.Infer(ctx, [][]byte{raw})
	stats := h.engine.Stats()
	h.inferMu.Unlock()

	totalMS := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		h.failedRequests.Add(1)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "inference timed out",
				slog.Float64("total_ms", totalMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, "inference timed out")
			return
		}

		h.log.ErrorContext(r.Context(), "inference failed",
			slog.Float64("total_ms", totalMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	records, err := protocol.EncodeOutputs(outputs)
	if err != nil {
		h.failedRequests.Add(1)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	inferMS := float64(stats.LastInferenceTime.Microseconds()) / 1000.0

	h.log.InfoContext(r.Context(), "inference complete",
		slog.Int("outputs", len(records)),
		slog.Float64("inference_ms", inferMS),
		slog.Float64("total_ms", totalMS),
	)

	writeJSON(w, http.StatusOK, protocol.InferResponse{
		Outputs:         records,
		InferenceTimeMS: inferMS,
		TotalTimeMS:     totalMS,
	})
}

func (h *handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	total := h.totalRequests.Load()
	failed := h.failedRequests.Load()

	successRate := 100.0
	if total > 0 {
		successRate = float64(total-failed) / float64(total) * 100.0
	}

	stats := h.engine.Stats()

	writeJSON(w, http.StatusOK, protocol.StatsResponse{
		TotalRequests:      total,
		FailedRequests:     failed,
		SuccessRate:        successRate,
		TotalInferences:    stats.TotalInferences,
		AvgInferenceTimeMS: float64(stats.LastInferenceTime.Microseconds()) / 1000.0,
		MemoryUsageMB:      stats.MemoryUsageMB,
	})
}

func (h *handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: msg})
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	engine          inference.Engine
	shutdownTimeout time.Duration
}

func New(cfg config.Config, engine inference.Engine) *Server {
	shutdown := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}

	return &Server{
		cfg:             cfg,
		engine:          engine,
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	handlerOpts := []Option{
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second),
	}
	if s.cfg.Server.MaxBodyBytes > 0 {
		handlerOpts = append(handlerOpts, WithMaxBodyBytes(s.cfg.Server.MaxBodyBytes))
	}

	h := NewHandler(s.engine, handlerOpts...)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("server listening",
		slog.String("addr", httpServer.Addr),
		slog.String("model", s.engine.ModelPath()),
		slog.Bool("gpu", s.engine.GPUAvailable()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}
