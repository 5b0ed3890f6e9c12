package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockflow/internal/domain/shared"
	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultDraftKeyPrefix namespaces draft keys in Redis
const DefaultDraftKeyPrefix = "stockflow:draft:"

// RedisDraftRepository implements stock.DraftRepository on Redis so drafts survive
// restarts and are shared by every instance
type RedisDraftRepository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisDraftRepository connects to Redis and creates a repository
func NewRedisDraftRepository(cfg RedisConfig, keyPrefix string, ttl time.Duration) (*RedisDraftRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisDraftRepositoryWithClient(client, keyPrefix, ttl), nil
}

// NewRedisDraftRepositoryWithClient creates a repository on an existing client
func NewRedisDraftRepositoryWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisDraftRepository {
	if keyPrefix == "" {
		keyPrefix = DefaultDraftKeyPrefix
	}
	return &RedisDraftRepository{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Save writes the draft and resets its TTL
func (r *RedisDraftRepository) Save(ctx context.Context, draft *stock.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := r.client.Set(ctx, r.key(draft.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// FindByID loads a draft, returning shared.ErrDraftNotFound when absent or expired
func (r *RedisDraftRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Draft, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	var draft stock.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &draft, nil
}

// Delete removes a draft
func (r *RedisDraftRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (r *RedisDraftRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (r *RedisDraftRepository) Close() error {
	return r.client.Close()
}

func (r *RedisDraftRepository) key(id uuid.UUID) string {
	return r.keyPrefix + id.String()
}

var _ stock.DraftRepository = (*RedisDraftRepository)(nil)
