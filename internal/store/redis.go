package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rendis/flowreader/pkg/schema"
)

const defaultRedisPrefix = "flowreader"

// RedisStore implements DiagramStore on Redis: one hash per diagram plus a
// set holding every diagram ID.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. Keys are namespaced by prefix
// ("flowreader" when empty).
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromURL parses a redis:// URL and connects.
func NewRedisStoreFromURL(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid redis url").WithCause(err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, schema.NewError(schema.ErrCodeStore, "connect redis").WithCause(err)
	}
	return NewRedisStore(client, prefix), nil
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) diagramKey(id string) string {
	return fmt.Sprintf("%s:diagram:%s", s.prefix, id)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":diagrams"
}

func (s *RedisStore) GetDiagram(ctx context.Context, id string) (*Diagram, error) {
	fields, err := s.client.HGetAll(ctx, s.diagramKey(id)).Result()
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get diagram %q", id).WithCause(err)
	}
	if len(fields) == 0 {
		return nil, storeNotFound("diagram", id)
	}
	return &Diagram{
		ID:        id,
		Format:    Format(fields["format"]),
		Content:   []byte(fields["content"]),
		CreatedAt: parseUnixNano(fields["created_at"]),
		UpdatedAt: parseUnixNano(fields["updated_at"]),
	}, nil
}

func (s *RedisStore) PutDiagram(ctx context.Context, d *Diagram) error {
	if d.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "diagram id is empty")
	}
	if _, err := suffixFor(d.Format); err != nil {
		return err
	}

	key := s.diagramKey(d.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "created_at", unixNano(timeOrNow(d.CreatedAt)))
		pipe.HSet(ctx, key,
			"format", string(d.Format),
			"content", d.Content,
			"size", len(d.Content),
			"updated_at", unixNano(timeOrNow(d.UpdatedAt)),
		)
		pipe.SAdd(ctx, s.indexKey(), d.ID)
		return nil
	})
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "put diagram %q", d.ID).WithCause(err)
	}
	return nil
}

func (s *RedisStore) ListDiagrams(ctx context.Context, filter DiagramFilter) ([]*DiagramInfo, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list diagrams").WithCause(err)
	}
	sort.Strings(ids)

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.diagramKey(id), "format", "size", "updated_at")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, schema.NewError(schema.ErrCodeStore, "list diagrams").WithCause(err)
	}

	var out []*DiagramInfo
	for i, id := range ids {
		vals := cmds[i].Val()
		if len(vals) != 3 || vals[0] == nil {
			continue // removed between SMEMBERS and HMGET
		}
		format := Format(asString(vals[0]))
		if !filter.match(id, format) {
			continue
		}
		size, _ := strconv.ParseInt(asString(vals[1]), 10, 64)
		out = append(out, &DiagramInfo{
			ID:        id,
			Format:    format,
			Size:      size,
			UpdatedAt: parseUnixNano(asString(vals[2])),
		})
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) DeleteDiagram(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.diagramKey(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete diagram %q", id).WithCause(err)
	}
	if del.Val() == 0 {
		return storeNotFound("diagram", id)
	}
	return nil
}

func unixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func parseUnixNano(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

var _ DiagramStore = (*RedisStore)(nil)
