package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wonny/sentiment-ls/pkg/config"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// ShutdownGrace bounds how long in-flight requests (a running backtest included) may finish
const ShutdownGrace = 30 * time.Second

// Server is the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// New creates the server. Backtest runs are synchronous, so writes get a long timeout.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      10 * time.Minute,
			IdleTimeout:       time.Minute,
		},
		logger: log.WithFields(map[string]interface{}{"module": "api", "addr": ":" + cfg.Port}),
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run listens until ctx ends, then drains connections within ShutdownGrace.
// ready, when non-nil, is called once the listener is bound.
func (s *Server) Run(ctx context.Context, ready func(addr string)) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	if ready != nil {
		ready(ln.Addr().String())
	}
	s.logger.Info("API server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}
