// Package usercache keeps a short-lived Redis copy of account rows so balance
// lookups do not hit Postgres on every chat message.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/nordgate/tipbot/internal/domain"
)

// DefaultTTL bounds staleness for readers that race a balance mutation;
// every mutation path also invalidates the entry outright.
const DefaultTTL = 30 * time.Second

// Cache provides Redis-backed caching for account rows.
type Cache struct {
	client *redis.Client
}

// NewCache constructs an account cache backed by the provided Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get fetches a cached account if it exists. A nil account with nil error
// means cache miss.
func (c *Cache) Get(ctx context.Context, userID int64) (*domain.Account, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached account: %w", err)
	}

	var acc domain.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("decode cached account: %w", err)
	}

	return &acc, nil
}

// Set stores the account in cache for the provided TTL.
func (c *Cache) Set(ctx context.Context, acc *domain.Account, ttl time.Duration) error {
	if c == nil || c.client == nil || acc == nil {
		return nil
	}

	payload, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("encode account for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(acc.UserID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set cached account: %w", err)
	}

	return nil
}

// Invalidate removes the cached entry. Called after every balance mutation.
func (c *Cache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if c == nil || c.client == nil || len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cacheKey(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cached accounts: %w", err)
	}

	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("account:%d", userID)
}
