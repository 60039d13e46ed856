// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/usecases"
	"github.com/0xcro3dile/localrag-gateway/internal/infrastructure/ws"
)

const shutdownTimeout = 5 * time.Second

// CorpusStats reports the state of the similarity index.
type CorpusStats interface {
	Ready() bool
	Len() int
}

// Server is the HTTP server for the chat gateway and its REST surface.
type Server struct {
	router   chi.Router
	chat     *ws.Handler
	pipeline ws.Pipeline
	registry *usecases.SessionRegistry
	corpus   CorpusStats
}

// NewServer creates the server and its routes.
func NewServer(chat *ws.Handler, pipeline ws.Pipeline, registry *usecases.SessionRegistry, corpus CorpusStats) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		chat:     chat,
		pipeline: pipeline,
		registry: registry,
		corpus:   corpus,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.chat.ServeHTTP)
	s.router.Get("/ws", s.chat.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/chat", s.handleChat)
		r.Post("/query", s.handleQuery)
	})

	s.router.NotFound(handleNotFound)
	s.router.MethodNotAllowed(handleNotFound)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until ctx is done, then shuts down:
// stop accepting, close websocket sessions, wait for in-flight answers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("gateway listening")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)

	s.chat.CloseAll()
	s.chat.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.corpus.Ready() {
		status = "loading"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"chunks":         s.corpus.Len(),
		"sessions":       s.registry.Len(),
		"activeSessions": s.registry.ActiveCount(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat Route"})
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the answer to POST /api/query.
type QueryResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "query is required"})
		return
	}

	answer, err := s.pipeline.Answer(r.Context(), req.Query)
	if err != nil {
		log.Error().Err(err).Msg("query failed")
		answer = usecases.FallbackAnswer
	}
	writeJSON(w, http.StatusOK, QueryResponse{Answer: answer})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("writing response failed")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("remote", r.RemoteAddr).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
