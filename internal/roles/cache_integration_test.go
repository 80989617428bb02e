//go:build integration

package roles_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gavel/internal/roles"
	"gavel/pkg/domain"
	"gavel/pkg/testutil/containers"
)

func TestCachedAuthorizer(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	operator := domain.Address("0x" + strings.Repeat("0f", 20))
	stranger := domain.Address("0x" + strings.Repeat("ee", 20))

	grants := roles.NewStatic()
	grants.GrantAuctionOperator(operator)

	cached := roles.NewCachedAuthorizer(grants, rc.Client, time.Minute, slog.New(slog.DiscardHandler))

	t.Run("caches positive and negative decisions", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		ok, err := cached.IsAuctionOperator(ctx, operator)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = cached.IsAuctionOperator(ctx, stranger)
		require.NoError(t, err)
		assert.False(t, ok)

		keys, err := rc.Client.Keys(ctx, "gavel:role:auction:*").Result()
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("serves from cache within the TTL", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		ok, err := cached.IsTreasuryOperator(ctx, operator)
		require.NoError(t, err)
		assert.False(t, ok)

		// A grant after caching is not observed until the entry expires.
		grants.GrantTreasuryOperator(operator)
		ok, err = cached.IsTreasuryOperator(ctx, operator)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, rc.FlushAll(ctx))
		ok, err = cached.IsTreasuryOperator(ctx, operator)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
