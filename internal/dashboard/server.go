package dashboard

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/example/receipt-console/internal/backend"
	"github.com/example/receipt-console/internal/feed"
	"github.com/example/receipt-console/internal/receipt"
	"github.com/example/receipt-console/internal/session"
)

// Backend is everything the dashboard needs from the backend client
type Backend interface {
	feed.Backend
	feed.UploadBackend
	Login(ctx context.Context, email, password string) (*backend.AuthResult, error)
	Register(ctx context.Context, name, email, password string) (*backend.AuthResult, error)
	Stats(ctx context.Context) (*receipt.SpendStats, error)
}

// Server renders the receipt dashboard and forwards user actions to the
// backend. It keeps no receipt state of its own beyond the feed's cache.
// The feed is shared across requests, so the console serves one viewer:
// concurrent page loads on different tabs can briefly render each
// other's result set.
type Server struct {
	api      Backend
	sessions session.Store
	feed     *feed.Feed
	uploader *feed.Uploader
	validate *validator.Validate
	tmpl     *template.Template
	mux      *http.ServeMux
}

// NewServer creates a Server with a default mux
func NewServer(api Backend, sessions session.Store) *Server {
	return NewServerWithMux(api, sessions, http.NewServeMux())
}

// NewServerWithMux creates a Server with a custom mux for testing
func NewServerWithMux(api Backend, sessions session.Store, mux *http.ServeMux) *Server {
	s := &Server{
		api:      api,
		sessions: sessions,
		feed:     feed.New(api),
		validate: validator.New(),
		tmpl:     parseTemplates(),
		mux:      mux,
	}
	s.uploader = feed.NewUploader(api, func(report feed.BatchReport) {
		slog.Info("Upload batch finished",
			"batch", report.BatchID,
			"succeeded", report.Succeeded(),
			"failed", report.Failed(),
		)
		if err := s.feed.Refetch(context.Background()); err != nil {
			slog.Error("Refetch after upload failed", "error", err)
		}
	})
	s.registerRoutes()
	return s
}

// requireSession redirects to the login page when no usable token is
// stored. The token itself is attached per request by the backend client.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.sessions.Token(); err != nil {
			if !errors.Is(err, session.ErrNoToken) {
				slog.Error("Reading session failed", "error", err)
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.handleStaticCSS)

	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /logout", s.requireSession(s.handleLogout))

	s.mux.HandleFunc("POST /upload", s.requireSession(s.handleUpload))
	s.mux.HandleFunc("POST /receipts/validate-all", s.requireSession(s.handleValidateAll))
	s.mux.HandleFunc("POST /receipts/{id}/validate", s.requireSession(s.handleValidate))
	s.mux.HandleFunc("POST /receipts/{id}/process", s.requireSession(s.handleProcess))
	s.mux.HandleFunc("POST /receipts/{id}/delete", s.requireSession(s.handleDelete))

	s.mux.HandleFunc("GET /", s.requireSession(s.handleDashboard))
}

// handleStaticCSS serves the stylesheet
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting dashboard", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
