package cmdutil

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bistream/bistream-go/pkg/metrics"
)

// MetricsPath is where the Prometheus handler is mounted.
const MetricsPath = "/metrics"

// MetricsServer exposes a private Prometheus registry over HTTP.
type MetricsServer struct {
	collector *metrics.Collector
	srv       *http.Server
	ln        net.Listener
	done      chan struct{}
}

// StartMetrics registers the bistream collectors plus the Go runtime and
// process collectors on a fresh registry and serves them on addr.
func StartMetrics(addr string, logger *slog.Logger) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	col, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	m := &MetricsServer{
		collector: col,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:   ln,
		done: make(chan struct{}),
	}

	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String(), "path", MetricsPath)
	return m, nil
}

// Collector returns the collector to hand to the client or server config.
func (m *MetricsServer) Collector() *metrics.Collector {
	return m.collector
}

// Addr returns the bound listen address.
func (m *MetricsServer) Addr() string {
	return m.ln.Addr().String()
}

// Shutdown stops the HTTP server and waits for it to exit.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	err := m.srv.Shutdown(ctx)
	<-m.done
	return err
}
