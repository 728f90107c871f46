package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rendis/flowreader/internal/expressions"
	"github.com/rendis/flowreader/internal/logging"
	"github.com/rendis/flowreader/internal/metrics"
	"github.com/rendis/flowreader/internal/reader"
	"github.com/rendis/flowreader/internal/store"
)

// app wires the components every command needs from a Config.
type app struct {
	cfg     Config
	logger  *slog.Logger
	store   store.DiagramStore
	readLog *store.ReadLog // nil unless source is libsql
	reader  *reader.Reader
	conds   *expressions.Conditions
	metrics *prometheus.Registry
	closeFn func() error
}

func newApp(ctx context.Context, cfg Config, stderr io.Writer) (*app, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	conds, err := expressions.NewConditions(cfg.ConditionEngine)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logging.NewLogger(stderr, cfg.LogLevel, cfg.LogFormat),
		conds:   conds,
		closeFn: func() error { return nil },
	}

	switch cfg.Source {
	case sourceDir:
		ds, dsErr := store.NewDirStore(cfg.DiagramDir)
		if dsErr != nil {
			return nil, dsErr
		}
		a.store = ds
	case sourceLibSQL:
		if mkErr := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); mkErr != nil {
			return nil, fmt.Errorf("create db dir: %w", mkErr)
		}
		ls, lsErr := store.NewLibSQLStore(dbURI(cfg.DBPath))
		if lsErr != nil {
			return nil, lsErr
		}
		if mErr := ls.Migrate(ctx); mErr != nil {
			ls.Close()
			return nil, fmt.Errorf("migrate: %w", mErr)
		}
		a.store = ls
		a.readLog = store.NewReadLog(ls)
		a.closeFn = ls.Close
	case sourceRedis:
		rs, rsErr := store.NewRedisStoreFromURL(ctx, cfg.RedisURL, "")
		if rsErr != nil {
			return nil, rsErr
		}
		a.store = rs
		a.closeFn = rs.Close
	}

	a.metrics = prometheus.NewRegistry()
	recorders := store.Recorders{metrics.New(a.metrics)}
	if a.readLog != nil {
		recorders = append(recorders, a.readLog)
	}
	a.reader = reader.New(reader.Deps{Store: a.store, Logger: a.logger, Recorder: recorders})

	a.logger.Debug("flowreader configured",
		slog.String("source", cfg.Source),
		slog.String("condition_engine", cfg.ConditionEngine),
	)
	return a, nil
}

func (a *app) Close() error {
	return a.closeFn()
}

// dbURI turns a plain path into a libSQL file URI.
func dbURI(path string) string {
	if strings.Contains(path, ":") {
		return path
	}
	return "file:" + path
}
