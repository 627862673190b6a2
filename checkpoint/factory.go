package checkpoint

import (
	"context"
	"fmt"

	"github.com/dmoura/tripgraph/config"
)

// NewStore builds the store selected by the configuration.
func NewStore(ctx context.Context, cfg config.CheckpointConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend: %q", cfg.Backend)
	}
}
