package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowreader/pkg/schema"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_PutGet(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	require.NoError(t, s.PutDiagram(ctx, &Diagram{
		ID: "order", Format: FormatBPMN, Content: []byte("<definitions/>"), CreatedAt: created, UpdatedAt: created,
	}))

	assert.True(t, mr.Exists("flowreader:diagram:order"))
	members, err := mr.SMembers("flowreader:diagrams")
	require.NoError(t, err)
	assert.Equal(t, []string{"order"}, members)

	d, err := s.GetDiagram(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, FormatBPMN, d.Format)
	assert.Equal(t, "<definitions/>", string(d.Content))
	assert.Equal(t, created, d.CreatedAt)
}

func TestRedisStore_UpsertKeepsCreatedAt(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	first := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutDiagram(ctx, &Diagram{ID: "a", Format: FormatYAML, Content: []byte("v1"), CreatedAt: first, UpdatedAt: first}))
	require.NoError(t, s.PutDiagram(ctx, &Diagram{ID: "a", Format: FormatYAML, Content: []byte("v2")}))

	d, err := s.GetDiagram(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(d.Content))
	assert.Equal(t, first, d.CreatedAt)
	assert.True(t, d.UpdatedAt.After(first))
}

func TestRedisStore_Validation(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	err := s.PutDiagram(ctx, &Diagram{Format: FormatBPMN})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	err = s.PutDiagram(ctx, &Diagram{ID: "x", Format: "png"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestRedisStore_NotFound(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.GetDiagram(ctx, "missing")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	err = s.DeleteDiagram(ctx, "missing")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestRedisStore_List(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	for _, d := range []*Diagram{
		{ID: "b-order", Format: FormatBPMN, Content: []byte("12345")},
		{ID: "a-invoice", Format: FormatYAML, Content: []byte("123")},
		{ID: "b-refund", Format: FormatYAML, Content: []byte("1")},
	} {
		require.NoError(t, s.PutDiagram(ctx, d))
	}

	all, err := s.ListDiagrams(ctx, DiagramFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a-invoice", all[0].ID)
	assert.Equal(t, int64(3), all[0].Size)
	assert.False(t, all[0].UpdatedAt.IsZero())

	prefixed, err := s.ListDiagrams(ctx, DiagramFilter{Prefix: "b-"})
	require.NoError(t, err)
	assert.Len(t, prefixed, 2)

	yaml, err := s.ListDiagrams(ctx, DiagramFilter{Format: FormatYAML, Limit: 1})
	require.NoError(t, err)
	require.Len(t, yaml, 1)
	assert.Equal(t, "a-invoice", yaml[0].ID)
}

func TestRedisStore_Delete(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutDiagram(ctx, &Diagram{ID: "a", Format: FormatYAML, Content: []byte("x")}))
	require.NoError(t, s.DeleteDiagram(ctx, "a"))

	assert.False(t, mr.Exists("flowreader:diagram:a"))
	_, err := s.GetDiagram(ctx, "a")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

	infos, err := s.ListDiagrams(ctx, DiagramFilter{})
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "tenant1")
	require.NoError(t, s.PutDiagram(context.Background(), &Diagram{ID: "a", Format: FormatYAML, Content: []byte("x")}))
	assert.True(t, mr.Exists("tenant1:diagram:a"))
}

func TestNewRedisStoreFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := NewRedisStoreFromURL(ctx, "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.PutDiagram(ctx, &Diagram{ID: "a", Format: FormatYAML, Content: []byte("x")}))

	_, err = NewRedisStoreFromURL(ctx, "not a url", "")
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}
