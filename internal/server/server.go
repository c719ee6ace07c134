// Package server exposes the feature registry and the generation pipeline
// over HTTP. Every response is a {success, data|error, message} envelope.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/josephgoksu/TodoBuilder/internal/app"
)

type Server struct {
	app     *app.App
	logger  *slog.Logger
	origins map[string]struct{}
	handler http.Handler
	server  *http.Server
}

// New builds a server for a. Only origins listed in allowedOrigins receive
// CORS headers.
func New(a *app.App, port int, allowedOrigins []string) *Server {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	s := &Server{
		app:     a,
		logger:  a.Logger.With("component", "server"),
		origins: origins,
	}
	s.handler = s.registerRoutes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
