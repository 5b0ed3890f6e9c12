package cache

import (
	"fmt"

	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/erp/stockflow/internal/infrastructure/config"
	"go.uber.org/zap"
)

// DraftStore is a draft repository that holds resources to release on shutdown
type DraftStore interface {
	stock.DraftRepository
	Close() error
}

// DraftStoreFactory creates draft stores based on configuration
type DraftStoreFactory struct {
	draftConfig           config.DraftConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// DraftStoreFactoryOption is a functional option for configuring the factory
type DraftStoreFactoryOption func(*DraftStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) DraftStoreFactoryOption {
	return func(f *DraftStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to the in-memory store.
// Default is false.
func WithInMemoryFallback(allow bool) DraftStoreFactoryOption {
	return func(f *DraftStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewDraftStoreFactory creates a new factory
func NewDraftStoreFactory(draftCfg config.DraftConfig, redisCfg config.RedisConfig, opts ...DraftStoreFactoryOption) *DraftStoreFactory {
	f := &DraftStoreFactory{
		draftConfig: draftCfg,
		redisConfig: redisCfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore creates the store selected by draft.store
func (f *DraftStoreFactory) CreateStore() (DraftStore, error) {
	if f.draftConfig.Store != config.DraftStoreRedis {
		f.logger.Info("Using in-memory draft store", zap.Duration("ttl", f.draftConfig.TTL))
		return NewInMemoryDraftRepository(f.draftConfig.TTL), nil
	}

	store, err := NewRedisDraftRepository(RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.draftConfig.KeyPrefix, f.draftConfig.TTL)
	if err == nil {
		f.logger.Info("Using Redis draft store",
			zap.String("addr", f.redisConfig.Addr()),
			zap.Duration("ttl", f.draftConfig.TTL),
		)
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis draft store unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory draft store. "+
		"Drafts will not survive a restart or be shared between instances.",
		zap.Error(err),
	)
	return NewInMemoryDraftRepository(f.draftConfig.TTL), nil
}
