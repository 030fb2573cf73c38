package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vendhub-bot/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	// cartKeyPrefix is the Redis key prefix for carts.
	cartKeyPrefix = "vendhub:cart:"
)

// RedisStore is a Redis-backed implementation of Store. Carts are
// stored as JSON with a TTL that Redis enforces natively, so expiry
// needs no sweeper and survives bot restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed cart store with the given
// inactivity window.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

func (s *RedisStore) load(ctx context.Context, userID string) (*model.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if err == redis.Nil {
		return &model.Cart{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var c model.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse cart data: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) save(ctx context.Context, c *model.Cart) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize cart: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(c.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cart: %w", err)
	}
	return nil
}

// Get returns the user's cart and refreshes its TTL.
func (s *RedisStore) Get(ctx context.Context, userID string) (*model.Cart, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.IsEmpty() {
		// Reading the cart counts as activity.
		s.client.Expire(ctx, cartKey(userID), s.ttl)
	}
	return c, nil
}

// Add stages qty units of item onto the user's cart.
func (s *RedisStore) Add(ctx context.Context, userID string, item *model.Item, qty int64) (*model.Cart, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := merge(c, item, qty); err != nil {
		return nil, err
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Remove drops qty units of itemID from the user's cart.
func (s *RedisStore) Remove(ctx context.Context, userID string, itemID, qty int64) (*model.Cart, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := reduce(c, itemID, qty); err != nil {
		return nil, err
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Clear drops the whole cart.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, cartKey(userID)).Err()
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
