package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"gdo-bridge/internal/application"
	"gdo-bridge/internal/domain"
)

const maxBodyBytes = 4096

// Controller is the part of the garage bridge exposed over HTTP.
type Controller interface {
	Snapshot() domain.GarageState
	Execute(ctx context.Context, cmd domain.Command) error
	Verify(ctx context.Context, address string, port int, username, password string) (domain.VerificationResult, error)
	UpdateCredentials(ctx context.Context, username, password string) error
	UpdateAddress(ctx context.Context, address string, port int) error
}

type Config struct {
	Addr       string
	AuthToken  string
	RateLimit  int
	RateWindow time.Duration
}

type Option func(*Server)

// WithMetrics serves h on /metrics and wraps every route with mw.
func WithMetrics(h http.Handler, mw func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
		s.metricsMiddleware = mw
	}
}

// Server is the local control API.
type Server struct {
	cfg        Config
	controller Controller
	logger     *slog.Logger

	router      chi.Router
	rateLimiter *RateLimiter

	metricsHandler    http.Handler
	metricsMiddleware func(http.Handler) http.Handler

	mu      sync.Mutex
	server  *http.Server
	running bool
}

func NewServer(cfg Config, controller Controller, logger *slog.Logger, opts ...Option) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 30
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}

	s := &Server{
		cfg:         cfg,
		controller:  controller,
		logger:      logger,
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metricsMiddleware != nil {
		r.Use(s.metricsMiddleware)
	}

	r.Get("/health", s.handleHealth)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimiter.Middleware)

		r.Get("/status", s.handleStatus)
		r.Post("/door/{action}", s.handleDoor)
		r.Put("/door/position", s.handleDoorPosition)
		r.Put("/switches/{switch}", s.handleSwitch)
		r.Post("/buttons/{button}/press", s.handleButton)
		r.Put("/security-protocol", s.handleSecurityProtocol)
		r.Post("/verify", s.handleVerify)
		r.Put("/settings/credentials", s.handleCredentials)
		r.Put("/settings/address", s.handleAddress)
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		s.logger.Info("control API starting", "addr", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control API error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.cfg.AuthToken {
			s.logger.Warn("unauthorized control request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.controller.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"available": state.Available,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

var doorActions = map[string]domain.Action{
	"open":   domain.ActionOpen,
	"close":  domain.ActionClose,
	"stop":   domain.ActionStop,
	"toggle": domain.ActionToggle,
}

func (s *Server) handleDoor(w http.ResponseWriter, r *http.Request) {
	action, ok := doorActions[chi.URLParam(r, "action")]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown door action")
		return
	}
	s.execute(w, r, domain.Command{Action: action, TargetType: domain.TargetTypeDoor})
}

func (s *Server) handleDoorPosition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Position *float64 `json:"position"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Position == nil {
		writeError(w, http.StatusBadRequest, "position is required")
		return
	}
	s.execute(w, r, domain.Command{
		Action:     domain.ActionSetPosition,
		TargetType: domain.TargetTypeDoor,
		Position:   *body.Position,
	})
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On     *bool `json:"on"`
		Toggle bool  `json:"toggle"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	cmd := domain.Command{
		TargetType: domain.TargetTypeSwitch,
		Switch:     domain.Switch("switch-" + chi.URLParam(r, "switch")),
	}
	switch {
	case body.Toggle:
		cmd.Action = domain.ActionToggle
	case body.On == nil:
		writeError(w, http.StatusBadRequest, "on or toggle is required")
		return
	case *body.On:
		cmd.Action = domain.ActionTurnOn
	default:
		cmd.Action = domain.ActionTurnOff
	}
	s.execute(w, r, cmd)
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, domain.Command{
		Action:     domain.ActionPress,
		TargetType: domain.TargetTypeButton,
		Button:     domain.Button("button-" + chi.URLParam(r, "button")),
	})
}

func (s *Server) handleSecurityProtocol(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Protocol string `json:"protocol"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.execute(w, r, domain.Command{
		Action:     domain.ActionSetProtocol,
		TargetType: domain.TargetTypeProtocol,
		Protocol:   domain.SecurityProtocol(body.Protocol),
	})
}

type deviceSettings struct {
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body deviceSettings
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	result, err := s.controller.Verify(r.Context(), body.Address, body.Port, body.Username, body.Password)
	if err != nil {
		if errors.Is(err, application.ErrNoVerifier) {
			writeError(w, http.StatusNotImplemented, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}

// reconnectTimeout bounds a settings change. The reconnect outlives the
// request so a client hanging up does not leave the device disconnected.
const reconnectTimeout = time.Minute

func reconnectContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), reconnectTimeout)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	var body deviceSettings
	if !decodeBody(w, r, &body) {
		return
	}
	ctx, cancel := reconnectContext(r)
	defer cancel()
	if err := s.controller.UpdateCredentials(ctx, body.Username, body.Password); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	var body deviceSettings
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	ctx, cancel := reconnectContext(r)
	defer cancel()
	if err := s.controller.UpdateAddress(ctx, body.Address, body.Port); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, cmd domain.Command) {
	cmd.ID = middleware.GetReqID(r.Context())
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	cmd.Source = "http"

	if err := s.controller.Execute(r.Context(), cmd); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": cmd.ID})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
