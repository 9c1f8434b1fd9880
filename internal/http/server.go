package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"budgetboard/internal/dashboard"
	"budgetboard/internal/log"
	"budgetboard/internal/metrics"
	"budgetboard/internal/middleware/ratelimit"
	"budgetboard/internal/middleware/security"
	"budgetboard/internal/middleware/trace"
	"budgetboard/internal/services"
)

// Options tunes NewServer. Zero values fall back to the defaults.
type Options struct {
	TableSize         int
	MaxTableSize      int
	RequestsPerMinute int
	AllowedOrigins    []string
	Logger            *log.Logger
}

const defaultMaxTableSize = 1000

type Server struct {
	http.Server
	datasets *services.DatasetService
	sessions *services.SessionService

	tableSize    int
	maxTableSize int

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger
	events   *log.StructuredLogger
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, datasets *services.DatasetService, sessions *services.SessionService, opts Options) *Server {
	if opts.TableSize <= 0 {
		opts.TableSize = dashboard.DefaultTableSize
	}
	if opts.MaxTableSize <= 0 {
		opts.MaxTableSize = defaultMaxTableSize
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Handler: slog.Default().Handler()})
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	limiterCfg := ratelimit.DefaultConfig()
	if opts.RequestsPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RequestsPerMinute
	}

	s := &Server{
		datasets:     datasets,
		sessions:     sessions,
		tableSize:    opts.TableSize,
		maxTableSize: opts.MaxTableSize,
		limiter:      ratelimit.NewLimiter(limiterCfg),
		detector:     security.NewDetector(),
		logger:       logger,
		events:       log.NewStructuredLogger(logger.WithComponent(log.ComponentDashboard)),
		started:      time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	headersCfg := security.DefaultHeadersConfig()
	headersCfg.AllowedOrigins = opts.AllowedOrigins
	headers := security.NewHeadersMiddleware(headersCfg)

	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.route("/healthz", s.handleHealth))
	mux.HandleFunc("GET /readyz", s.route("/readyz", s.handleReady))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/dimensions", s.route("/api/dimensions", s.handleDimensions))

	mux.HandleFunc("POST /api/sessions", s.route("/api/sessions", s.limited(s.handleCreateSession)))
	mux.HandleFunc("GET /api/sessions/{id}", s.route("/api/sessions/{id}", s.handleGetSession))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.route("/api/sessions/{id}", s.handleDeleteSession))

	mux.HandleFunc("GET /api/sessions/{id}/filters", s.route("/api/sessions/{id}/filters", s.handleGetFilters))
	mux.HandleFunc("DELETE /api/sessions/{id}/filters", s.route("/api/sessions/{id}/filters", s.limited(s.handleResetFilters)))
	mux.HandleFunc("PUT /api/sessions/{id}/filters/{dimension}", s.route("/api/sessions/{id}/filters/{dimension}", s.limited(s.handleSetFilter)))
	mux.HandleFunc("DELETE /api/sessions/{id}/filters/{dimension}", s.route("/api/sessions/{id}/filters/{dimension}", s.limited(s.handleClearFilter)))

	mux.HandleFunc("GET /api/sessions/{id}/table", s.route("/api/sessions/{id}/table", s.handleTable))
	mux.HandleFunc("GET /api/sessions/{id}/selects/{dimension}", s.route("/api/sessions/{id}/selects/{dimension}", s.handleSelectMenu))
}

// route records the request under a fixed route label.
func (s *Server) route(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)
		metrics.ObserveHTTP(pattern, rw.statusCode, time.Since(start))
	}
}

// limited applies the per-client rate limit. Only state-changing routes are
// limited.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	mw := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").Write(w)
	})
	return mw(next).ServeHTTP
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
