package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rendis/flowreader/internal/metrics"
	"github.com/rendis/flowreader/internal/scheduler"
	"github.com/rendis/flowreader/pkg/mcp"
)

func (c *cli) runServe(ctx context.Context, args []string) error {
	fs, cfg := c.flagSet("serve")
	fs.StringVar(&cfg.AuditSchedule, "audit", cfg.AuditSchedule, "cron schedule for re-reading every stored diagram (empty disables)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for the Prometheus /metrics endpoint (empty disables)")
	if err := parse(fs, args, 0, 0); err != nil {
		return err
	}

	a, err := newApp(ctx, *cfg, c.stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.AuditSchedule != "" {
		auditor, auditErr := scheduler.NewAuditor(a.store, a.reader, cfg.AuditSchedule, a.logger)
		if auditErr != nil {
			return auditErr
		}
		if startErr := auditor.Start(ctx); startErr != nil {
			return startErr
		}
		defer auditor.Stop()
	}

	if cfg.MetricsAddr != "" {
		_, stopMetrics, metricsErr := startMetrics(cfg.MetricsAddr, a.metrics, a.logger)
		if metricsErr != nil {
			return metricsErr
		}
		defer stopMetrics()
	}

	srv := mcp.NewFlowServer(mcp.FlowServerDeps{
		Reader:     a.reader,
		Store:      a.store,
		Conditions: a.conds,
		Logger:     a.logger,
	})
	a.logger.Info("serving MCP over stdio", "source", a.cfg.Source)
	return srv.Serve(ctx)
}

// startMetrics serves /metrics on addr. It returns the bound address and a
// function that shuts the listener down.
func startMetrics(addr string, g prometheus.Gatherer, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	bound := ln.Addr().String()
	logger.Info("metrics listening", "addr", bound)

	return bound, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", "error", err)
		}
	}, nil
}
