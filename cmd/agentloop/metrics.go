package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
)

// startMetrics serves /metrics on c.Listen. With no address configured it
// returns a nil collector and a no-op stop func.
func startMetrics(c config.MetricsConfig, logger logging.Logger) (*metrics.Collector, func(), error) {
	if c.Listen == "" {
		return nil, func() {}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector, err := metrics.New(reg)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics.server.failed", "error", err.Error())
		}
	}()
	logger.Info("metrics.server.started", "addr", ln.Addr().String())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return collector, stop, nil
}
