package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/events"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/journal"
	"git.home.luguber.info/inful/bedshift/internal/notify"
)

// Machine is the subset of the adherence machine served over HTTP.
type Machine interface {
	DisplayState(ctx context.Context) (adherence.DisplayState, error)
	Setup(ctx context.Context, s adherence.Survey) (adherence.DisplayState, error)
	OnUserConfirmCycle(ctx context.Context, cycleID string) (adherence.DisplayState, error)
	OnUserSkipCycle(ctx context.Context, cycleID string) (adherence.DisplayState, error)
	Resume(ctx context.Context) (adherence.DisplayState, error)
}

// Permissions toggles the exact-delivery capability of the trigger facility.
type Permissions interface {
	SetExactAllowed(allowed bool)
	CanScheduleExact() bool
}

// History reads the adherence journal.
type History interface {
	ByCycle(ctx context.Context, cycleID string) ([]journal.Entry, error)
	Range(ctx context.Context, start, end time.Time) ([]journal.Entry, error)
}

// Server represents the API server.
type Server struct {
	Addr    string
	router  *chi.Mux
	server  *http.Server
	adapter *errors.HTTPErrorAdapter

	machine     Machine
	permissions Permissions
	history     History
	metrics     http.Handler
	bus         *events.Bus
	notices     func() []notify.Notice
	now         func() time.Time

	// streams is canceled on Shutdown so open event streams end.
	streams     context.Context
	stopStreams context.CancelFunc
}

// Option configures optional server endpoints.
type Option func(*Server)

// WithPermissions enables PUT /permissions/exact.
func WithPermissions(p Permissions) Option {
	return func(s *Server) { s.permissions = p }
}

// WithHistory enables GET /history.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithEventBus enables the GET /events stream.
func WithEventBus(b *events.Bus) Option {
	return func(s *Server) { s.bus = b }
}

// WithNotices enables GET /notices.
func WithNotices(fn func() []notify.Notice) Option {
	return func(s *Server) { s.notices = fn }
}

// WithNow overrides the clock used for history ranges.
func WithNow(fn func() time.Time) Option {
	return func(s *Server) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewServer creates a new API server.
func NewServer(addr string, m Machine, opts ...Option) *Server {
	s := &Server{
		Addr:    addr,
		router:  chi.NewRouter(),
		adapter: errors.NewHTTPErrorAdapter(slog.Default()),
		machine: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.streams, s.stopStreams = context.WithCancel(context.Background())
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server.RegisterOnShutdown(s.stopStreams)

	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	// The event stream is long lived and stays outside the request timeout.
	if s.bus != nil {
		s.router.Get("/events", s.handleEvents)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/state", s.handleState)
		r.Post("/plan", s.handlePlan)
		r.Post("/confirm", s.handleConfirm)
		r.Post("/skip", s.handleSkip)
		r.Post("/resume", s.handleResume)

		if s.permissions != nil {
			r.Get("/permissions/exact", s.handleGetExact)
			r.Put("/permissions/exact", s.handlePutExact)
		}
		if s.history != nil {
			r.Get("/history", s.handleHistory)
		}
		if s.notices != nil {
			r.Get("/notices", s.handleNotices)
		}
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics)
		}
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the API server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Serve accepts connections on l. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Notice  string         `json:"notice,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Error writes an error response. data is included when the operation
// committed a state change despite the error.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error, data any) {
	status := s.adapter.StatusCodeFor(err)
	payload := s.adapter.FormatErrorResponse(err)
	writeJSON(w, status, Response{
		Success: false,
		Data:    data,
		Error:   payload.Error,
		Code:    payload.Code,
		Details: payload.Details,
	})

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelInfo
	}
	slog.Log(r.Context(), level, "API request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()))
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, Response{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Duration("duration", time.Since(start)))
	})
}
