package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowreader/pkg/schema"
)

// LibSQLStore implements DiagramStore and ReadRecorder using libSQL
// (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/flowreader.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB (used by ReadLog).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Diagrams ---

func (s *LibSQLStore) GetDiagram(ctx context.Context, id string) (*Diagram, error) {
	d := &Diagram{}
	var format string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, format, content, created_at, updated_at FROM diagrams WHERE id = ?`, id,
	).Scan(&d.ID, &format, &d.Content, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("diagram", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get diagram %q", id).WithCause(err)
	}
	d.Format = Format(format)
	return d, nil
}

func (s *LibSQLStore) PutDiagram(ctx context.Context, d *Diagram) error {
	if d.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "diagram id is empty")
	}
	if _, err := suffixFor(d.Format); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO diagrams (id, format, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET format=excluded.format, content=excluded.content, updated_at=excluded.updated_at`,
		d.ID, string(d.Format), d.Content, timeOrNow(d.CreatedAt), timeOrNow(d.UpdatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "put diagram %q", d.ID).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) ListDiagrams(ctx context.Context, filter DiagramFilter) ([]*DiagramInfo, error) {
	var where []string
	var args []any

	if filter.Prefix != "" {
		where = append(where, "id LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(filter.Prefix)+"%")
	}
	if filter.Format != "" {
		where = append(where, "format = ?")
		args = append(args, string(filter.Format))
	}

	query := `SELECT id, format, length(content), updated_at FROM diagrams`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list diagrams").WithCause(err)
	}
	defer rows.Close()

	var out []*DiagramInfo
	for rows.Next() {
		info := &DiagramInfo{}
		var format string
		if err := rows.Scan(&info.ID, &format, &info.Size, &info.UpdatedAt); err != nil {
			return nil, err
		}
		info.Format = Format(format)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteDiagram(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM diagrams WHERE id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete diagram %q", id).WithCause(err)
	}
	return checkRowsAffected(res, "diagram", id)
}

// --- Helpers ---

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

var (
	_ DiagramStore = (*LibSQLStore)(nil)
	_ ReadRecorder = (*ReadLog)(nil)
)
