// Package api exposes the engine over HTTP: JSON endpoints for state,
// history, and alerts, command submission, and a websocket stream that pushes
// one state per tick.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vigil-mon/agent/internal/advisor"
	"github.com/vigil-mon/agent/internal/engine"
	"github.com/vigil-mon/agent/internal/logging"
)

var log = logging.L("api")

// Engine is the surface the handlers need from the coordinator.
type Engine interface {
	State() *engine.State
	Submit(cmd engine.Command) string
	Acknowledge(kind advisor.Kind, rule string, pid int32) bool
	RecentEvents() []engine.Event
	Subscribe() chan *engine.State
	Unsubscribe(ch chan *engine.State)
}

// Server wraps the HTTP listener around a router built for one engine.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, eng Engine) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(eng),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
