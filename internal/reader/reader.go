package reader

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/flowreader/internal/bpmn"
	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/internal/dsl"
	"github.com/rendis/flowreader/internal/logging"
	"github.com/rendis/flowreader/internal/store"
	"github.com/rendis/flowreader/pkg/schema"
)

// Decoder turns a stored document into a diagram.
type Decoder func(data []byte) (*diagram.Diagram, error)

// DefaultDecoders returns the decoders for every built-in format.
func DefaultDecoders() map[store.Format]Decoder {
	return map[store.Format]Decoder{
		store.FormatBPMN: bpmn.Decode,
		store.FormatYAML: dsl.Decode,
	}
}

// Deps holds the dependencies for creating a Reader.
type Deps struct {
	Store    store.DiagramStore
	Recorder store.ReadRecorder // optional
	Decoders map[store.Format]Decoder
	Logger   *slog.Logger
}

// Reader loads diagrams from a store and reads them into workflows.
// It is safe for concurrent use when its store and recorder are.
type Reader struct {
	store    store.DiagramStore
	recorder store.ReadRecorder
	decoders map[store.Format]Decoder
	logger   *slog.Logger
}

// New creates a Reader. Missing decoders default to DefaultDecoders. The
// logger should wrap a logging.CorrelationHandler so records carry the
// diagram and read IDs.
func New(deps Deps) *Reader {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(logging.NewCorrelationHandler(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	}
	decoders := deps.Decoders
	if decoders == nil {
		decoders = DefaultDecoders()
	}
	return &Reader{
		store:    deps.Store,
		recorder: deps.Recorder,
		decoders: decoders,
		logger:   logger,
	}
}

// Decode parses a document of the given format.
func (r *Reader) Decode(format store.Format, data []byte) (*diagram.Diagram, error) {
	dec, ok := r.decoders[format]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "no decoder for format %q", format)
	}
	return dec(data)
}

// Load fetches and decodes a diagram by ID.
func (r *Reader) Load(ctx context.Context, id string) (*diagram.Diagram, error) {
	doc, err := r.store.GetDiagram(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := r.Decode(doc.Format, doc.Content)
	if err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "diagram loaded",
		slog.String("format", string(doc.Format)),
		slog.Int("nodes", len(d.Nodes())),
		slog.Int("flows", len(d.Flows())),
	)
	return d, nil
}

// Read loads the diagram and returns its title and task table. Every
// outcome is logged and, when a recorder is configured, appended to the
// read log.
func (r *Reader) Read(ctx context.Context, id string) (*schema.Workflow, error) {
	readID := uuid.New().String()
	ctx = logging.WithIDs(ctx, id, readID)
	started := time.Now()

	wf, err := r.read(ctx, id)
	r.record(ctx, id, readID, wf, err)

	if err != nil {
		r.logger.WarnContext(ctx, "diagram read failed",
			slog.String("error_code", schema.Code(err)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	r.logger.InfoContext(ctx, "diagram read",
		slog.String("title", wf.Title),
		slog.Int("tasks", wf.Tasks.Len()),
		slog.Duration("elapsed", time.Since(started)),
	)
	return wf, nil
}

func (r *Reader) read(ctx context.Context, id string) (*schema.Workflow, error) {
	d, err := r.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	wf, err := ReadDiagram(d)
	if err != nil {
		return nil, err
	}
	wf.ID = id
	return wf, nil
}

func (r *Reader) record(ctx context.Context, id, readID string, wf *schema.Workflow, readErr error) {
	if r.recorder == nil {
		return
	}
	rec := &store.ReadRecord{DiagramID: id, ReadID: readID}
	if readErr != nil {
		rec.ErrorCode = schema.Code(readErr)
		rec.Error = readErr.Error()
	} else {
		rec.Title = wf.Title
		rec.TaskCount = wf.Tasks.Len()
	}
	if err := r.recorder.AppendRead(ctx, rec); err != nil {
		r.logger.ErrorContext(ctx, "record read failed", slog.String("error", err.Error()))
	}
}
