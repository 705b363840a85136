package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"apptsync/internal/batch"
	"apptsync/internal/codec"
	"apptsync/internal/config"
	"apptsync/internal/directory"
	"apptsync/internal/identity"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
	"apptsync/internal/upstream"
	"apptsync/internal/visibility"
)

const requestTimeout = 60 * time.Second

// Store is the persistence collaborator. *upstream.Client implements it.
type Store interface {
	ListAppointments(ctx context.Context, from, to time.Time) (upstream.ListResult, error)
	CreateAppointment(ctx context.Context, w model.WireAppointment, key string) (model.WireAppointment, error)
	CreateAppointments(ctx context.Context, b batch.CreateBatch, key string) ([]json.RawMessage, error)
	UpdateAppointment(ctx context.Context, id string, w model.WireAppointment) (model.WireAppointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

// Directory supplies staff snapshots. *directory.Directory implements it.
type Directory interface {
	Snapshot() directory.Snapshot
	Refresh(ctx context.Context) error
}

// Server exposes the appointment API.
type Server struct {
	cfg       *config.Config
	loc       *time.Location
	store     Store
	dir       Directory
	mapper    batch.Mapper
	evaluator visibility.Evaluator
	now       func() time.Time
	router    chi.Router
}

// NewServer wires the mapping pipeline from cfg and registers routes. loc is
// the viewer timezone resolved from cfg.
func NewServer(cfg *config.Config, loc *time.Location, store Store, dir Directory) *Server {
	resolver := identity.NewResolver(
		identity.NewPrefixValidator(cfg.Identity.Prefix, cfg.Identity.MinLength),
		cfg.Phone.CountryCode,
	)
	s := &Server{
		cfg:       cfg,
		loc:       loc,
		store:     store,
		dir:       dir,
		mapper:    batch.New(codec.New(loc, cfg.DefaultClientLabel), resolver),
		evaluator: visibility.New(loc, cfg.DefaultDuration()),
		now:       time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuth)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/appointments", s.handleListAppointments)
			r.Post("/appointments", s.handleCreateAppointment)
			r.Post("/appointments/batch", s.handleCreateBatch)
			r.Post("/appointments/import", s.handleImport)
			r.Put("/appointments/{id}", s.handleUpdateAppointment)
			r.Delete("/appointments/{id}", s.handleDeleteAppointment)
			r.Get("/appointments.ics", s.handleExport)
			r.Get("/staff", s.handleStaff)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. A missing
// username or password disables it.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="apptsync", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestLogger attaches a request-scoped logger and logs one line per
// request once the handler returns.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := appLog.L().With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(appLog.WithContext(r.Context(), l))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		l.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// writeUpstreamError maps transport failures onto HTTP statuses. The
// detailed error is logged only; clients get a fixed message.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusBadGateway, "upstream unavailable"
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		status, msg = http.StatusNotFound, "appointment not found"
	case errors.Is(err, upstream.ErrConflict):
		status, msg = http.StatusConflict, "appointment conflicts with an existing one"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "upstream timed out"
	}
	appLog.FromContext(r.Context()).Error("upstream request failed", "err", err, "status", status)
	writeError(w, status, msg)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
