package oracle

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var bidder = domain.Address("0x" + strings.Repeat("1b", 20))

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := NewSealedBidVerifier(testKey)
	require.NoError(t, err)
	id := domain.ListingID(5)

	sealed, err := v.Seal(decimal.NewFromInt(80), id, bidder)
	require.NoError(t, err)

	amount, err := v.Open(context.Background(), sealed, id, bidder)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(80)))
}

func TestOpenRejectsBindingMismatch(t *testing.T) {
	v, err := NewSealedBidVerifier(testKey)
	require.NoError(t, err)

	sealed, err := v.Seal(decimal.NewFromInt(80), domain.ListingID(5), bidder)
	require.NoError(t, err)

	t.Run("wrong listing", func(t *testing.T) {
		_, err := v.Open(context.Background(), sealed, domain.ListingID(6), bidder)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDependency))
	})

	t.Run("wrong bidder", func(t *testing.T) {
		other := domain.Address("0x" + strings.Repeat("2c", 20))
		_, err := v.Open(context.Background(), sealed, domain.ListingID(5), other)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDependency))
	})
}

func TestOpenRejectsGarbage(t *testing.T) {
	v, err := NewSealedBidVerifier(testKey)
	require.NoError(t, err)
	ctx := context.Background()
	id := domain.ListingID(5)

	t.Run("not base64", func(t *testing.T) {
		_, err := v.Open(ctx, "%%%", id, bidder)
		require.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := v.Open(ctx, base64.StdEncoding.EncodeToString([]byte("tiny")), id, bidder)
		require.Error(t, err)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		sealed, err := v.Seal(decimal.NewFromInt(80), id, bidder)
		require.NoError(t, err)
		raw, _ := base64.StdEncoding.DecodeString(sealed)
		raw[len(raw)-1] ^= 0xff
		_, err = v.Open(ctx, base64.StdEncoding.EncodeToString(raw), id, bidder)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDependency))
	})
}

func TestOpenRejectsNonPositiveAmount(t *testing.T) {
	v, err := NewSealedBidVerifier(testKey)
	require.NoError(t, err)
	id := domain.ListingID(5)

	sealed, err := v.Seal(decimal.Zero, id, bidder)
	require.NoError(t, err)

	_, err = v.Open(context.Background(), sealed, id, bidder)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDependency))
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := NewSealedBidVerifier("zz")
	require.Error(t, err)

	_, err = NewSealedBidVerifier("abcd")
	require.Error(t, err)
}
