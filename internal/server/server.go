// Package server exposes the daily challenge over HTTP. Players are
// identified by an opaque X-Player-Token header; there is no account system.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cluegrid/cluegrid/internal/config"
	"github.com/cluegrid/cluegrid/internal/daily"
	"github.com/cluegrid/cluegrid/internal/resilience"
	"github.com/cluegrid/cluegrid/internal/store"
)

// Server serves the daily challenge API.
type Server struct {
	daily *daily.Service
	store store.Store
	cfg   config.ServerConfig
}

// New builds a Server.
func New(dailySvc *daily.Service, st store.Store, cfg config.ServerConfig) *Server {
	return &Server{daily: dailySvc, store: st, cfg: cfg}
}

// Router assembles the chi mux with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Player-Token"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/daily", s.handleGetDaily)
		r.Post("/daily/answers", s.handleSubmitAnswer)
		r.Post("/daily/final/wager", s.handleLockWager)
		r.Post("/daily/final", s.handleSubmitFinal)
		r.Post("/daily/reset", s.handleReset)
		r.Post("/appeals", s.handleAppeal)
	})

	return r
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// requestLogger logs one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses. Unknown errors log and
// return 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, daily.ErrChallengeNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no challenge for date"})
	case errors.Is(err, daily.ErrClueNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "clue not found"})
	case errors.Is(err, daily.ErrInvalidStage),
		errors.Is(err, daily.ErrInvalidSlot),
		errors.Is(err, daily.ErrWagerRequired),
		errors.Is(err, daily.ErrWagerOutOfRange),
		errors.Is(err, daily.ErrBoardIncomplete),
		errors.Is(err, daily.ErrWagerNotLocked):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: trimmedMessage(err)})
	case errors.Is(err, daily.ErrChallengeComplete),
		errors.Is(err, daily.ErrWagerAlreadyLocked),
		errors.Is(err, daily.ErrAppealNotEligible),
		errors.Is(err, store.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: trimmedMessage(err)})
	case resilience.IsTransient(err):
		zap.L().Warn("transient store failure", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporarily unavailable, retry"})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// trimmedMessage strips the package prefix from sentinel error messages.
func trimmedMessage(err error) string {
	msg := err.Error()
	const prefix = "daily: "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
