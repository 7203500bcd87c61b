package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusServer exposes a registry over HTTP while a suite runs, so a
// long run can be scraped before the textfile is written.
type PrometheusServer struct {
	address string
	server  *http.Server
}

// NewPrometheusServer serves the metrics gathered by g at path on address.
// Every other path answers 404.
func NewPrometheusServer(address, path string, g prometheus.Gatherer) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return &PrometheusServer{
		address: address,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the address and serves until ctx is canceled or Shutdown is
// called. A bind failure is returned immediately.
func (s *PrometheusServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", s.address, err)
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops accepting scrapes and waits for in-flight ones.
func (s *PrometheusServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
