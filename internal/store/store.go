package store

import (
	"context"
	"errors"
)

// DiagramStore is the contract for loading and managing diagram documents.
// All implementations must be safe for concurrent use.
type DiagramStore interface {
	GetDiagram(ctx context.Context, id string) (*Diagram, error)
	PutDiagram(ctx context.Context, d *Diagram) error
	ListDiagrams(ctx context.Context, filter DiagramFilter) ([]*DiagramInfo, error)
	DeleteDiagram(ctx context.Context, id string) error
}

// ReadRecorder persists the outcome of diagram reads.
type ReadRecorder interface {
	AppendRead(ctx context.Context, rec *ReadRecord) error
}

// Recorders fans a read record out to several recorders. Every recorder is
// called even when an earlier one fails.
type Recorders []ReadRecorder

// AppendRead implements ReadRecorder.
func (rs Recorders) AppendRead(ctx context.Context, rec *ReadRecord) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.AppendRead(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
