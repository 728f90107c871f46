package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowreader/internal/store"
	"github.com/rendis/flowreader/pkg/schema"
)

// DiagramReader reads a stored diagram. Satisfied by *reader.Reader.
type DiagramReader interface {
	Read(ctx context.Context, id string) (*schema.Workflow, error)
}

// AuditReport is the outcome of one pass over every stored diagram.
type AuditReport struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Diagrams  int               `json:"diagrams"`
	Failed    map[string]string `json:"failed,omitempty"` // diagram ID → error code
}

// Auditor re-reads every stored diagram on a cron schedule, so diagrams
// that stop reading cleanly (edited files, changed decoders) show up in the
// logs and the read log before a process needs them.
type Auditor struct {
	store    store.DiagramStore
	reader   DiagramReader
	schedule cron.Schedule
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	reportMu sync.RWMutex
	last     *AuditReport
}

// NewAuditor creates an Auditor. spec is a five-field cron expression or a
// descriptor such as "@hourly" or "@every 10m".
func NewAuditor(s store.DiagramStore, r DiagramReader, spec string, logger *slog.Logger) (*Auditor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse audit schedule %q", spec).WithCause(err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{store: s, reader: r, schedule: schedule, logger: logger}, nil
}

// Next returns the first audit time after from.
func (a *Auditor) Next(from time.Time) time.Time {
	return a.schedule.Next(from)
}

// Start launches the background audit loop.
func (a *Auditor) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.done != nil {
		a.mu.Unlock()
		return fmt.Errorf("auditor already started")
	}

	auditCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.loop(auditCtx)
	a.logger.Info("diagram audit started")
	return nil
}

func (a *Auditor) loop(ctx context.Context) {
	defer close(a.done)

	for {
		now := time.Now()
		timer := time.NewTimer(a.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := a.RunOnce(ctx); err != nil {
				a.logger.Error("diagram audit failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce reads every stored diagram and returns the report. Read failures
// are collected in the report; only a failing listing is an error.
func (a *Auditor) RunOnce(ctx context.Context) (*AuditReport, error) {
	started := time.Now()
	infos, err := a.store.ListDiagrams(ctx, store.DiagramFilter{})
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}

	report := &AuditReport{StartedAt: started.UTC(), Failed: make(map[string]string)}
	for _, info := range infos {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		report.Diagrams++
		if _, readErr := a.reader.Read(ctx, info.ID); readErr != nil {
			code := schema.Code(readErr)
			if code == "" {
				code = "UNKNOWN"
			}
			report.Failed[info.ID] = code
		}
	}
	report.Duration = time.Since(started)

	a.reportMu.Lock()
	a.last = report
	a.reportMu.Unlock()

	level := slog.LevelInfo
	if len(report.Failed) > 0 {
		level = slog.LevelWarn
	}
	a.logger.Log(ctx, level, "diagram audit finished",
		slog.Int("diagrams", report.Diagrams),
		slog.Int("failed", len(report.Failed)),
		slog.Duration("elapsed", report.Duration),
	)
	return report, nil
}

// LastReport returns the report of the most recent audit, or nil.
func (a *Auditor) LastReport() *AuditReport {
	a.reportMu.RLock()
	defer a.reportMu.RUnlock()
	return a.last
}

// Stop gracefully shuts down the audit loop.
func (a *Auditor) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return nil
	}

	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil

	a.logger.Info("diagram audit stopped")
	return nil
}
