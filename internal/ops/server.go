// Package ops serves the health and metrics endpoints.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/taxibot/core/logger"
)

// Health is a point-in-time view of the process.
type Health struct {
	Status        string   `json:"status"`
	FrontEnds     []string `json:"frontends"`
	PendingOrders int      `json:"pending_orders"`
	QueuedNotices int      `json:"queued_notices"`
}

// HealthFunc reports the current health.
type HealthFunc func() Health

// Server is the ops HTTP listener.
type Server struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
	once sync.Once
}

// NewHandler returns the ops routes.
func NewHandler(health HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		h := health()
		code := http.StatusOK
		if len(h.FrontEnds) == 0 {
			h.Status = "degraded"
			code = http.StatusServiceUnavailable
		} else if h.Status == "" {
			h.Status = "ok"
		}
		if h.FrontEnds == nil {
			h.FrontEnds = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(h)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Start listens on addr and serves in the background.
func Start(ctx context.Context, addr string, health HealthFunc) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ops: listen %s: %w", addr, err)
	}
	s := &Server{
		srv: &http.Server{
			Handler:           NewHandler(health),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:   ln,
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, logger.CompOps, "server.failed", slog.String("err", err.Error()))
		}
	}()
	logger.Info(ctx, logger.CompOps, "server.listening", slog.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the listener, waiting up to 5s for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err = s.srv.Shutdown(sctx)
		<-s.done
	})
	return err
}
