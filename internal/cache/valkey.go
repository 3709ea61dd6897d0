package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fanpass/internal/models"

	"github.com/redis/go-redis/v9"
)

const earningsKeyPrefix = "earnings:summary:"

type Config struct {
	Enabled    bool          `envconfig:"VALKEY_ENABLED" default:"true"`
	Addr       string        `envconfig:"VALKEY_ADDR" default:"localhost:6379"`
	Password   string        `envconfig:"VALKEY_PASSWORD"`
	DB         int           `envconfig:"VALKEY_DB" default:"0"`
	SummaryTTL time.Duration `envconfig:"EARNINGS_CACHE_TTL" default:"5m"`
}

// ValkeyClient caches per-user earnings summaries
type ValkeyClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return NewWithClient(rdb, cfg.SummaryTTL), nil
}

// NewWithClient wraps an existing client, e.g. a redismock one.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *ValkeyClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ValkeyClient{client: rdb, ttl: ttl}
}

func earningsKey(userID string) string {
	return earningsKeyPrefix + userID
}

// GetEarningsSummary returns nil, nil on a cache miss.
func (v *ValkeyClient) GetEarningsSummary(ctx context.Context, userID string) (*models.EarningsSummaryResponse, error) {
	data, err := v.client.Get(ctx, earningsKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var summary models.EarningsSummaryResponse
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("invalid earnings summary in cache: %w", err)
	}
	return &summary, nil
}

func (v *ValkeyClient) SetEarningsSummary(ctx context.Context, summary *models.EarningsSummaryResponse) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal earnings summary: %w", err)
	}

	if err := v.client.Set(ctx, earningsKey(summary.UserID), data, v.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache earnings summary: %w", err)
	}
	return nil
}

// InvalidateEarnings drops the cached summary of a user after a new credit
func (v *ValkeyClient) InvalidateEarnings(ctx context.Context, userID string) error {
	if err := v.client.Del(ctx, earningsKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate earnings summary: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
