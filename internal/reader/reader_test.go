package reader

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/internal/logging"
	"github.com/rendis/flowreader/internal/store"
	"github.com/rendis/flowreader/pkg/schema"
)

type memRecorder struct {
	records []*store.ReadRecord
	err     error
}

func (m *memRecorder) AppendRead(_ context.Context, rec *store.ReadRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

func newTestReader(t *testing.T) (*Reader, *memRecorder, *bytes.Buffer) {
	t.Helper()
	s, err := store.NewDirStore("testdata")
	require.NoError(t, err)
	rec := &memRecorder{}
	var buf bytes.Buffer
	r := New(Deps{
		Store:    s,
		Recorder: rec,
		Logger:   logging.NewLogger(&buf, "debug", "json"),
	})
	return r, rec, &buf
}

func byName(t *testing.T, wf *schema.Workflow, name string) schema.TaskInfo {
	t.Helper()
	for _, e := range wf.Tasks.Entries() {
		if e.Name == name {
			return e.TaskInfo
		}
	}
	t.Fatalf("task %q not in table", name)
	return schema.TaskInfo{}
}

func TestRead_ExtendedTest(t *testing.T) {
	r, rec, buf := newTestReader(t)

	wf, err := r.Read(context.Background(), "extended-test")
	require.NoError(t, err)
	assert.Equal(t, "extended-test", wf.ID)
	assert.Equal(t, "say-hello", wf.Title)
	require.Equal(t, 2, wf.Tasks.Len())

	assert.Equal(t, info(1, "", false), byName(t, wf, "Say hello"))
	assert.Equal(t, info(2, "", true), byName(t, wf, "Execute script"))

	require.Len(t, rec.records, 1)
	assert.Equal(t, "say-hello", rec.records[0].Title)
	assert.Equal(t, 2, rec.records[0].TaskCount)
	assert.NotEmpty(t, rec.records[0].ReadID)
	assert.False(t, rec.records[0].Failed())

	assert.Contains(t, buf.String(), `"diagram_id":"extended-test"`)
	assert.Contains(t, buf.String(), `"msg":"diagram read"`)
}

func TestRead_GatewayTest1(t *testing.T) {
	r, _, _ := newTestReader(t)

	wf, err := r.Read(context.Background(), "gateway-test1")
	require.NoError(t, err)
	assert.Equal(t, "gateway-test1", wf.Title)
	assert.Equal(t, 5, wf.Tasks.Len())

	assert.Equal(t, info(1, "", false), byName(t, wf, "Task1"))
	assert.Equal(t, info(2, "${type==1}", false), byName(t, wf, "ScriptTask"))
	assert.Equal(t, info(2, "${type==2}", false), byName(t, wf, "Task3"))
	assert.Equal(t, info(2, "default", false), byName(t, wf, "Task4"))
	assert.Equal(t, info(3, "", true), byName(t, wf, "Task5"))
}

func TestRead_GatewayTest2(t *testing.T) {
	r, rec, buf := newTestReader(t)

	wf, err := r.Read(context.Background(), "gateway-test2")
	assert.Nil(t, wf)
	wfErr := requireCode(t, err, schema.ErrCodeUnsupportedBranch)
	assert.Equal(t, "Task in parallel branch can not have second task. Please remove task after task with name 'Task9'.", wfErr.Message)

	require.Len(t, rec.records, 1)
	assert.Equal(t, schema.ErrCodeUnsupportedBranch, rec.records[0].ErrorCode)
	assert.True(t, rec.records[0].Failed())
	assert.Contains(t, buf.String(), `"msg":"diagram read failed"`)
}

func TestRead_GatewayTest3(t *testing.T) {
	r, _, _ := newTestReader(t)

	wf, err := r.Read(context.Background(), "gateway-test3")
	require.NoError(t, err)
	assert.Equal(t, 7, wf.Tasks.Len())

	assert.Equal(t, info(1, "", false), byName(t, wf, "Task1"))
	assert.Equal(t, info(2, "", false), byName(t, wf, "Task2"))
	assert.Equal(t, info(3, "type=2", false), byName(t, wf, "Task3"))
	assert.Equal(t, info(4, "type=2", false), byName(t, wf, "Task4"))
	assert.Equal(t, info(4, "type=2", false), byName(t, wf, "Task5"))
	assert.Equal(t, info(5, "type=2", true), byName(t, wf, "Task6"))
	assert.Equal(t, info(3, "type=1", true), byName(t, wf, "Task7"))
}

func TestRead_NotFound(t *testing.T) {
	r, rec, _ := newTestReader(t)

	_, err := r.Read(context.Background(), "missing")
	requireCode(t, err, schema.ErrCodeNotFound)
	require.Len(t, rec.records, 1)
	assert.Equal(t, schema.ErrCodeNotFound, rec.records[0].ErrorCode)
}

func TestRead_RecorderFailureIsLogged(t *testing.T) {
	r, rec, buf := newTestReader(t)
	rec.err = errors.New("disk full")

	wf, err := r.Read(context.Background(), "extended-test")
	require.NoError(t, err)
	assert.Equal(t, "say-hello", wf.Title)
	assert.Contains(t, buf.String(), "record read failed")
}

func TestRead_YAMLDocument(t *testing.T) {
	dir := t.TempDir()
	doc := `title: review
nodes:
  - {id: start, kind: start}
  - {id: draft, kind: task, name: Draft}
  - {id: end, kind: end}
flows:
  - {source: start, target: draft}
  - {source: draft, target: end}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "review.yaml"), []byte(doc), 0o644))
	s, err := store.NewDirStore(dir)
	require.NoError(t, err)

	wf, err := New(Deps{Store: s}).Read(context.Background(), "review")
	require.NoError(t, err)
	assert.Equal(t, "review", wf.Title)
	assert.Equal(t, info(1, "", true), byName(t, wf, "Draft"))
}

func TestReader_UnknownFormat(t *testing.T) {
	r := New(Deps{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))})
	_, err := r.Decode("png", nil)
	requireCode(t, err, schema.ErrCodeValidation)
}

func TestReadTitle(t *testing.T) {
	d := build(t, diagram.NewBuilder("  ").Start("s").Task("a", "A").End("e").Flow("s", "a").Flow("a", "e"))
	_, err := ReadTitle(d)
	requireCode(t, err, schema.ErrCodeMissingMetadata)

	d = build(t, diagram.NewBuilder("review").Start("s"))
	title, err := ReadTitle(d)
	require.NoError(t, err)
	assert.Equal(t, "review", title)
}

func TestReadDiagram_TitleCheckedFirst(t *testing.T) {
	// No title and no start event: metadata wins.
	d := build(t, diagram.NewBuilder("").Task("a", "A"))
	_, err := ReadDiagram(d)
	requireCode(t, err, schema.ErrCodeMissingMetadata)
}
