package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"gavel/pkg/domain"
)

// CachedAuthorizer decorates an Authorizer with a Redis cache so repeated
// role checks do not hammer the authority of record. Only positive and
// negative decisions within the TTL are served from cache; cache failures
// fall through to the inner authorizer rather than denying.
type CachedAuthorizer struct {
	inner  Authorizer
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedAuthorizer(inner Authorizer, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedAuthorizer {
	return &CachedAuthorizer{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedAuthorizer) IsAuctionOperator(ctx context.Context, addr domain.Address) (bool, error) {
	return c.check(ctx, "auction", addr, c.inner.IsAuctionOperator)
}

func (c *CachedAuthorizer) IsTreasuryOperator(ctx context.Context, addr domain.Address) (bool, error) {
	return c.check(ctx, "treasury", addr, c.inner.IsTreasuryOperator)
}

func (c *CachedAuthorizer) check(
	ctx context.Context,
	role string,
	addr domain.Address,
	lookup func(context.Context, domain.Address) (bool, error),
) (bool, error) {
	key := fmt.Sprintf("gavel:role:%s:%s", role, addr)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "role cache read failed", "error", err, "role", role)
	}

	granted, err := lookup(ctx, addr)
	if err != nil {
		return false, err
	}

	val := "0"
	if granted {
		val = "1"
	}
	if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "role cache write failed", "error", err, "role", role)
	}
	return granted, nil
}
