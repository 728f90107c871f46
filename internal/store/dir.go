package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rendis/flowreader/pkg/schema"
)

// extensions maps file suffixes to formats, in lookup priority order.
var extensions = []struct {
	suffix string
	format Format
}{
	{".bpmn20.xml", FormatBPMN},
	{".bpmn", FormatBPMN},
	{".yaml", FormatYAML},
	{".yml", FormatYAML},
}

// DirStore serves diagrams from a directory, one file per diagram named
// <id>.bpmn20.xml, <id>.bpmn, <id>.yaml or <id>.yml.
type DirStore struct {
	dir string
}

// NewDirStore returns a DirStore rooted at dir. The directory must exist.
func NewDirStore(dir string) (*DirStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open diagram dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open diagram dir: %s is not a directory", dir)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) GetDiagram(_ context.Context, id string) (*Diagram, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		path := filepath.Join(s.dir, id+ext.suffix)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "read diagram %q", id).WithCause(err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "stat diagram %q", id).WithCause(err)
		}
		return &Diagram{
			ID:        id,
			Format:    ext.format,
			Content:   data,
			CreatedAt: info.ModTime().UTC(),
			UpdatedAt: info.ModTime().UTC(),
		}, nil
	}
	return nil, storeNotFound("diagram", id)
}

// PutDiagram writes the document atomically, replacing any file of the
// same ID in another format.
func (s *DirStore) PutDiagram(ctx context.Context, d *Diagram) error {
	if err := checkID(d.ID); err != nil {
		return err
	}
	suffix, err := suffixFor(d.Format)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".diagram-*")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "write diagram %q", d.ID).WithCause(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(d.Content); err != nil {
		_ = tmp.Close()
		return schema.NewErrorf(schema.ErrCodeStore, "write diagram %q", d.ID).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "write diagram %q", d.ID).WithCause(err)
	}

	if err := s.DeleteDiagram(ctx, d.ID); err != nil && !schema.IsCode(err, schema.ErrCodeNotFound) {
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, d.ID+suffix)); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "write diagram %q", d.ID).WithCause(err)
	}
	return nil
}

func (s *DirStore) ListDiagrams(_ context.Context, filter DiagramFilter) ([]*DiagramInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list diagrams").WithCause(err)
	}

	seen := make(map[string]bool, len(entries))
	var out []*DiagramInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id, format := splitName(e.Name())
		if format == "" || seen[id] || !filter.match(id, format) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		seen[id] = true
		out = append(out, &DiagramInfo{ID: id, Format: format, Size: info.Size(), UpdatedAt: info.ModTime().UTC()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *DirStore) DeleteDiagram(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	removed := false
	for _, ext := range extensions {
		err := os.Remove(filepath.Join(s.dir, id+ext.suffix))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "delete diagram %q", id).WithCause(err)
		}
		removed = true
	}
	if !removed {
		return storeNotFound("diagram", id)
	}
	return nil
}

// splitName splits a file name into diagram ID and format.
func splitName(name string) (string, Format) {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext.suffix) && len(name) > len(ext.suffix) {
			return strings.TrimSuffix(name, ext.suffix), ext.format
		}
	}
	return "", ""
}

func suffixFor(f Format) (string, error) {
	switch f {
	case FormatBPMN:
		return ".bpmn20.xml", nil
	case FormatYAML:
		return ".yaml", nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram format %q", f)
	}
}

// checkID rejects identifiers that could escape the store directory.
func checkID(id string) error {
	if id == "" {
		return schema.NewError(schema.ErrCodeValidation, "diagram id is empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid diagram id %q", id)
	}
	return nil
}

func storeNotFound(resource, id string) *schema.WorkflowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

var _ DiagramStore = (*DirStore)(nil)
