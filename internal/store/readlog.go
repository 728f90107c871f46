package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReadLog records read outcomes on top of a LibSQLStore.
type ReadLog struct {
	store *LibSQLStore
}

// NewReadLog wraps a LibSQLStore to provide the read log.
func NewReadLog(s *LibSQLStore) *ReadLog {
	return &ReadLog{store: s}
}

// AppendRead appends a record with a monotonically increasing per-diagram
// sequence.
func (rl *ReadLog) AppendRead(ctx context.Context, rec *ReadRecord) error {
	db := rl.store.DB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM read_log WHERE diagram_id = ?`, rec.DiagramID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	rec.Sequence = seq

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO read_log (diagram_id, read_id, sequence, title, task_count, error_code, error, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DiagramID, rec.ReadID, seq, nullStr(rec.Title), rec.TaskCount,
		nullStr(rec.ErrorCode), nullStr(rec.Error), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert read record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit read record: %w", err)
	}
	return nil
}

// ListReads returns records for a diagram with sequence > since, ordered by
// sequence ASC.
func (rl *ReadLog) ListReads(ctx context.Context, diagramID string, since int64) ([]*ReadRecord, error) {
	rows, err := rl.store.DB().QueryContext(ctx,
		`SELECT diagram_id, read_id, sequence, title, task_count, error_code, error, timestamp
		 FROM read_log WHERE diagram_id = ? AND sequence > ? ORDER BY sequence ASC`, diagramID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ReadRecord
	for rows.Next() {
		rec := &ReadRecord{}
		var title, code, msg sql.NullString
		if err := rows.Scan(&rec.DiagramID, &rec.ReadID, &rec.Sequence, &title, &rec.TaskCount, &code, &msg, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Title = title.String
		rec.ErrorCode = code.String
		rec.Error = msg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
