package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the configuration for metrics collection and exposition.
type Config struct {
	Enabled  bool
	Address  string
	Path     string
	Textfile string
}

// NoopServer is a no-op implementation of the Server interface.
// It does nothing when started or shut down.
type NoopServer struct{}

// Start is a no-op that returns immediately.
func (n *NoopServer) Start(ctx context.Context) error {
	return nil
}

// Shutdown is a no-op that returns immediately.
func (n *NoopServer) Shutdown(ctx context.Context) error {
	return nil
}

// New creates a Collector, Server and Exporter based on the provided
// configuration. Disabled metrics yield no-op implementations; otherwise the
// collector records into a private registry that the server (when an address
// is set) and the exporter (when a textfile is set) read from.
func New(cfg Config) (Collector, Server, Exporter) {
	if !cfg.Enabled {
		return &NoopCollector{}, &NoopServer{}, &NoopExporter{}
	}

	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)

	var server Server = &NoopServer{}
	if cfg.Address != "" {
		server = NewPrometheusServer(cfg.Address, cfg.Path, reg)
	}

	var exporter Exporter = &NoopExporter{}
	if cfg.Textfile != "" {
		exporter = NewTextfileExporter(cfg.Textfile, reg)
	}

	return collector, server, exporter
}
