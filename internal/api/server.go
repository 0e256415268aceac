// Package api is the ingress adapter (spec.md C7): it turns HTTP requests
// into pipeline.Pipeline operations and maps pipeline outcomes back onto the
// status codes and JSON shapes in spec.md §6. It performs no validation work
// itself beyond request-shape checks — everything else is the pipeline's job.
package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/outblock/imagevalidator/internal/pipeline"
)

// Server wraps the HTTP surface around a single Pipeline, the same
// "one Server value, no global singletons" shape the teacher's
// internal/api.Server followed around its Repository/FlowClient.
type Server struct {
	pipeline   *pipeline.Pipeline
	httpServer *http.Server
	validate   *validator.Validate
	log        *zap.SugaredLogger
	version    string
}

// NewServer builds a Server and registers its routes. version is surfaced on
// GET /health (spec.md §9 "structured startup log banner" / health version
// field, grounded on the teacher's BuildCommit).
func NewServer(addr string, p *pipeline.Pipeline, log *zap.SugaredLogger, version string) *Server {
	r := mux.NewRouter()

	s := &Server{
		pipeline: p,
		validate: validator.New(),
		log:      log,
		version:  version,
	}

	r.Use(commonMiddleware)
	r.Use(rateLimitMiddleware)

	registerRoutes(r, s)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener. It does not touch the
// pipeline — callers shut that down separately per spec.md §5's sequence.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
