package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/services"
)

var tracer = otel.Tracer("quill/internal/daemon")

const (
	requestIDHeader   = "X-Request-ID"
	heartbeatInterval = 15 * time.Second
	maxRequestBody    = 1 << 20
)

type apiServer struct {
	bind      string
	token     string
	logger    *slog.Logger
	daemon    *Daemon
	validate  *validator.Validate
	heartbeat time.Duration

	listener  net.Listener
	server    *http.Server
	closing   chan struct{}
	closeOnce sync.Once
}

// newAPIServer returns nil when no bind address is configured; all methods
// treat a nil server as disabled.
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:      bind,
		token:     strings.TrimSpace(cfg.Paths.APIToken),
		logger:    logger,
		daemon:    d,
		validate:  newValidator(),
		heartbeat: heartbeatInterval,
		closing:   make(chan struct{}),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, traced(pattern, withRequestID(authMiddleware(s.token, h))))
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	handle("GET /api/status", s.handleStatus)
	handle("POST /api/workflows", s.handleCreateWorkflow)
	handle("GET /api/workflows", s.handleListWorkflows)
	handle("GET /api/workflows/{id}", s.handleGetWorkflow)
	handle("POST /api/workflows/{id}/approve-outline", s.handleApproveOutline)
	handle("POST /api/workflows/{id}/reject-outline", s.handleRejectOutline)
	handle("POST /api/workflows/{id}/revise", s.handleRevise)
	handle("POST /api/workflows/{id}/apply-seo", s.handleApplySEO)
	handle("POST /api/workflows/{id}/finalize", s.handleFinalize)
	handle("POST /api/workflows/{id}/chat", s.handleChat)
	handle("GET /api/workflows/{id}/events", s.handleEvents)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.stop(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// stop ends open event streams first so Shutdown does not wait on them.
func (s *apiServer) stop(ctx context.Context) {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() { close(s.closing) })
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = s.server.Close()
		}
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) log() *slog.Logger {
	if s == nil || s.logger == nil {
		return logging.NewNop()
	}
	return logging.NewComponentLogger(s.logger, "api-server")
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Debug("write response failed", logging.Error(err))
	}
}

// withRequestID stamps every request with a correlation id, reusing the
// caller's X-Request-ID when present.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	}
}

// traced starts a server span per request, continuing any trace context the
// caller propagated.
func traced(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, pattern,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()
		if id := r.PathValue("id"); id != "" {
			span.SetAttributes(attribute.String("quill.workflow_id", id))
		}
		next(w, r.WithContext(ctx))
	}
}
