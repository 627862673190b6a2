package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string        // defaults to "tripgraph:"
	TTL       time.Duration // per-thread expiry, 0 disables
}

// RedisStore persists checkpoints in Redis: one sorted set per thread
// scored by step, one value key per checkpoint. Suitable for deployments
// where several processes serve the same threads.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tripgraph:"
	}
	return &RedisStore{client: client, prefix: prefix + "ckpt:", ttl: cfg.TTL}, nil
}

func (s *RedisStore) threadKey(threadID string) string {
	return s.prefix + "thread:" + threadID
}

func (s *RedisStore) dataKey(id string) string {
	return s.prefix + "data:" + id
}

func (s *RedisStore) Save(ctx context.Context, cp *Checkpoint) error {
	prepare(cp)

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(cp.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.threadKey(cp.ThreadID), redis.Z{
		Score:  float64(cp.Step),
		Member: cp.ID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.threadKey(cp.ThreadID), s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) LoadLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	ids, err := s.client.ZRevRange(ctx, s.threadKey(threadID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return s.load(ctx, ids[0])
}

func (s *RedisStore) List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error) {
	end := int64(-1)
	if limit > 0 {
		end = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, s.threadKey(threadID), 0, end).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp, err := s.load(ctx, id)
		if err == ErrNotFound {
			continue // value expired ahead of the index
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *RedisStore) DeleteThread(ctx context.Context, threadID string) error {
	ids, err := s.client.ZRange(ctx, s.threadKey(threadID), 0, -1).Result()
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.dataKey(id))
	}
	pipe.Del(ctx, s.threadKey(threadID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.dataKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

var _ Store = (*RedisStore)(nil)
