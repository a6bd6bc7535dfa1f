package cache

import (
	"context"
	"fmt"

	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// StoreOption configures NewIdempotencyStore
type StoreOption func(*storeOptions)

type storeOptions struct {
	logger   *zap.Logger
	fallback bool
}

// WithLogger sets the logger used to report the chosen backend
func WithLogger(logger *zap.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithInMemoryFallback uses the in-memory store when Redis cannot be reached
func WithInMemoryFallback(allow bool) StoreOption {
	return func(o *storeOptions) {
		o.fallback = allow
	}
}

// NewIdempotencyStore builds the idempotency store named by backend
func NewIdempotencyStore(ctx context.Context, backend config.IdempotencyBackend, redisCfg config.RedisConfig, opts ...StoreOption) (shared.IdempotencyStore, error) {
	o := storeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	switch backend {
	case config.IdempotencyMemory, "":
		o.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	case config.IdempotencyRedis:
		store, err := NewRedisIdempotencyStore(ctx, redisCfg)
		if err == nil {
			o.logger.Info("using redis idempotency store", zap.String("addr", redisCfg.Addr()))
			return store, nil
		}
		if !o.fallback {
			return nil, err
		}
		o.logger.Warn("redis unavailable, falling back to in-memory idempotency store", zap.Error(err))
		return NewInMemoryIdempotencyStore(), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", backend)
	}
}
