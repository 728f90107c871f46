package store

import (
	"strings"
	"time"
)

// Format identifies the encoding of a diagram document.
type Format string

const (
	FormatBPMN Format = "bpmn"
	FormatYAML Format = "yaml"
)

// FormatFromPath derives a Format from a file name, or "" if unknown.
func FormatFromPath(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".bpmn20.xml"), strings.HasSuffix(lower, ".bpmn"), strings.HasSuffix(lower, ".xml"):
		return FormatBPMN
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML
	default:
		return ""
	}
}

// Diagram is a stored diagram document.
type Diagram struct {
	ID        string    `json:"id"`
	Format    Format    `json:"format"`
	Content   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DiagramInfo is the listing view of a Diagram, without content.
type DiagramInfo struct {
	ID        string    `json:"id"`
	Format    Format    `json:"format"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DiagramFilter narrows ListDiagrams results.
type DiagramFilter struct {
	Prefix string
	Format Format
	Limit  int
}

func (f DiagramFilter) match(id string, format Format) bool {
	if f.Prefix != "" && !strings.HasPrefix(id, f.Prefix) {
		return false
	}
	if f.Format != "" && f.Format != format {
		return false
	}
	return true
}

// ReadRecord is one entry of the read log.
type ReadRecord struct {
	DiagramID string    `json:"diagram_id"`
	ReadID    string    `json:"read_id"`
	Sequence  int64     `json:"sequence"`
	Title     string    `json:"title,omitempty"`
	TaskCount int       `json:"task_count"`
	ErrorCode string    `json:"error_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Failed reports whether the recorded read returned an error.
func (r *ReadRecord) Failed() bool {
	return r.ErrorCode != "" || r.Error != ""
}
