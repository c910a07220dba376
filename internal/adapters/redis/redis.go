// Package redis implements the customer lookup cache and the webhook event
// ledger on Redis.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

const customerKeyPrefix = "braintree:customer:"

// Connect parses a redis:// URL and verifies the connection.
func Connect(redisURL string, log *zap.Logger) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info("Redis connection established")
	return client, nil
}

// CustomerCache remembers Braintree customer ids known to exist.
type CustomerCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// NewCustomerCache creates a customer cache whose entries expire after ttl.
func NewCustomerCache(client goredis.Cmdable, ttl time.Duration) *CustomerCache {
	return &CustomerCache{client: client, ttl: ttl}
}

func customerKey(env domain.Environment, customerID string) string {
	return customerKeyPrefix + string(env) + ":" + customerID
}

// Exists reports whether the customer was seen recently.
func (c *CustomerCache) Exists(ctx context.Context, env domain.Environment, customerID string) (bool, error) {
	n, err := c.client.Exists(ctx, customerKey(env, customerID)).Result()
	return n > 0, err
}

// Remember marks the customer as existing.
func (c *CustomerCache) Remember(ctx context.Context, env domain.Environment, customerID string) error {
	return c.client.Set(ctx, customerKey(env, customerID), 1, c.ttl).Err()
}

// Forget drops the customer from the cache.
func (c *CustomerCache) Forget(ctx context.Context, env domain.Environment, customerID string) error {
	return c.client.Del(ctx, customerKey(env, customerID)).Err()
}

// EventLedger records claimed webhook deliveries.
type EventLedger struct {
	client goredis.Cmdable
}

// NewEventLedger creates an event ledger.
func NewEventLedger(client goredis.Cmdable) *EventLedger {
	return &EventLedger{client: client}
}

// Claim sets key if it is not set yet. It returns false for a key that is
// already claimed.
func (l *EventLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

// Release drops a claim so the delivery can be processed again.
func (l *EventLedger) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}
