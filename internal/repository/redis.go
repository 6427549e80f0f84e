package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spacebook/internal/config"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const tokenKeyPrefix = "spacebook:token:"

// RedisTokenStore keeps provider tokens in Redis so every API replica
// shares one token until it expires.
type RedisTokenStore struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisTokenStore(client *redis.Client, defaultTTL time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, defaultTTL: defaultTTL}
}

func (r *RedisTokenStore) GetToken(ctx context.Context, key string) (*oauth2.Token, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, tokenKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token from redis: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(val), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

func (r *RedisTokenStore) SetToken(ctx context.Context, key string, token *oauth2.Token) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := r.client.Set(ctx, tokenKeyPrefix+key, data, ttlFor(token, r.defaultTTL)).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	return nil
}

func (r *RedisTokenStore) DeleteToken(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, tokenKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

func ttlFor(token *oauth2.Token, fallback time.Duration) time.Duration {
	if token.Expiry.IsZero() {
		return fallback
	}
	ttl := time.Until(token.Expiry)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
