package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"permavid/internal/api"
	"permavid/internal/config"
	"permavid/internal/logging"
	"permavid/internal/queue"
	"permavid/internal/services"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.auth)

	r.Route("/api", func(root chi.Router) {
		root.Get("/health", s.handleHealth)
		root.Get("/status", s.handleStatus)
		root.Route("/queue", func(q chi.Router) {
			q.Post("/", s.handleAdd)
			q.Get("/", s.handleList)
			q.Delete("/", s.handleClear)
			q.Get("/gallery", s.handleGallery)
			q.Route("/{id}", func(item chi.Router) {
				item.Get("/", s.handleGet)
				item.Put("/", s.handleUpdate)
				item.Post("/status", s.handleSetStatus)
				item.Post("/retry", s.handleRetry)
				item.Post("/cancel", s.handleCancel)
				item.Post("/upload", s.handleUpload)
				item.Post("/restart-encoding", s.handleRestartEncoding)
			})
		})
		root.Get("/settings", s.handleGetSettings)
		root.Put("/settings", s.handleSaveSettings)
	})
	return r
}

// auth enforces bearer-token authentication when a token is configured.
// Without a token the API is open, which suits single-user localhost binds.
func (s *apiServer) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header != "Bearer "+s.token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
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
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, useful when the bind port is 0.
func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) writeSuccess(w http.ResponseWriter, message string, data any) {
	env := api.Envelope{Success: true, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to encode response data")
			return
		}
		env.Data = raw
	}
	s.writeJSON(w, http.StatusOK, env)
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.Envelope{Success: false, Message: message})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	s.writeError(w, errorStatus(err), services.Detail(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

// errorStatus classifies domain errors into HTTP status codes.
func errorStatus(err error) int {
	var dup *queue.DuplicateError
	switch {
	case errors.As(err, &dup):
		return http.StatusConflict
	case errors.Is(err, queue.ErrNotFound), errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrNotRetryable), errors.Is(err, services.ErrValidation):
		return http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
