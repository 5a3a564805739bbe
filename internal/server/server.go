package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/portfolio/testdashboard/internal/dashboard"
	"github.com/portfolio/testdashboard/internal/sessions"
	"github.com/portfolio/testdashboard/internal/telemetry"
	"github.com/portfolio/testdashboard/internal/view"
)

// SessionHeader carries the ID of the session a dialog response belongs to.
const SessionHeader = "X-Dashboard-Session"

type Server struct {
	sessions *sessions.Manager
	loader   dashboard.Loader
	renderer *view.Renderer
	metrics  *telemetry.Metrics
	logger   *zap.SugaredLogger
	rootDir  string
	title    string
	appEnv   string
	now      func() time.Time
}

type Option func(*Server)

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAppEnv(env string) Option {
	return func(s *Server) { s.appEnv = env }
}

func NewServer(mgr *sessions.Manager, loader dashboard.Loader, renderer *view.Renderer, rootDir string, opts ...Option) *Server {
	s := &Server{
		sessions: mgr,
		loader:   loader,
		renderer: renderer,
		logger:   zap.NewNop().Sugar(),
		rootDir:  rootDir,
		title:    "Portfolio",
		appEnv:   "development",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// Static files, including the generated test-results data script
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(s.rootDir, "static")))))
	r.Handle("/test-results/*", http.StripPrefix("/test-results/", http.FileServer(http.Dir(filepath.Join(s.rootDir, "test-results")))))

	r.Get("/", s.handleIndex)

	// Dashboard dialog
	r.Route("/dashboard/sessions", func(r chi.Router) {
		r.Post("/", s.handleOpenSession)
		r.Get("/{id}", s.handleSessionFrame)
		r.Delete("/{id}", s.handleCloseSession)
		r.Post("/{id}/panels/{panel}/toggle", s.handleTogglePanel)
	})

	// API routes
	r.Get("/api/v1/dashboard", s.handleDashboardAPI)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.renderer.RenderPage(&buf, view.PageData{Title: s.title, Env: s.appEnv}); err != nil {
		s.logger.Errorw("template error", "page", "index", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Open(r.Context())
	s.logger.Infow("dashboard session opened", "session", sess.ID, "remote", r.RemoteAddr)
	s.writeFrame(w, http.StatusCreated, sess)
}

func (s *Server) handleSessionFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeFrame(w, http.StatusOK, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Close(id)
	if err != nil {
		// Already closed or reaped: the page still needs the closed frame
		// and the scroll unlock.
		s.writeClosed(w, id)
		return
	}
	s.logger.Infow("dashboard session closed", "session", sess.ID)
	s.writeFrame(w, http.StatusOK, sess)
}

func (s *Server) handleTogglePanel(w http.ResponseWriter, r *http.Request) {
	panel, err := dashboard.ParsePanel(chi.URLParam(r, "panel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if _, err := sess.Controller.Toggle(panel); err != nil {
		if errors.Is(err, dashboard.ErrClosed) {
			s.writeClosed(w, sess.ID)
			return
		}
		s.logger.Errorw("toggle failed", "session", sess.ID, "panel", panel, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.writeFrame(w, http.StatusOK, sess)
}

// handleDashboardAPI runs one refresh cycle outside any session and returns
// the merged view model.
func (s *Server) handleDashboardAPI(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	model, err := dashboard.Assemble(r.Context(), s.loader, start, s.logger)
	s.metrics.ObserveCycle(s.now().Sub(start), err)
	writeJSON(w, http.StatusOK, model, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	}, s.logger)
}

// session looks up the session named in the URL. Unknown IDs are answered
// with the closed frame, since htmx does not swap error responses and the
// dialog would otherwise stay on screen with scrolling locked.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*sessions.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.logger.Debugw("unknown dashboard session", "session", id)
		s.writeClosed(w, id)
		return nil, false
	}
	return sess, true
}

// writeFrame serves the session's latest frame and tells the host page
// whether the body scroll lock should be engaged.
func (s *Server) writeFrame(w http.ResponseWriter, status int, sess *sessions.Session) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(SessionHeader, sess.ID)
	w.Header().Set("HX-Trigger", fmt.Sprintf(`{"scrollLock": %t}`, sess.ScrollLocked()))
	w.WriteHeader(status)
	w.Write(sess.HTML())
}

func (s *Server) writeClosed(w http.ResponseWriter, id string) {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, id, dashboard.Frame{State: dashboard.Closed}); err != nil {
		s.logger.Errorw("template error", "page", "dashboard", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(SessionHeader, id)
	w.Header().Set("HX-Trigger", `{"scrollLock": false}`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorw("encode JSON response", "error", err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debugw("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
