//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"gavel/internal/events"
	"gavel/pkg/domain"
	"gavel/pkg/testutil/containers"
)

func TestKafkaPublisher(t *testing.T) {
	kc := containers.NewKafkaContainer(t)
	ctx := context.Background()

	const topic = "gavel.auction.events.test"
	publisher, err := events.NewKafka(ctx, kc.Brokers, topic, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	bidder := domain.Address("0x" + strings.Repeat("aa", 20))
	published := events.Event{
		Kind:      events.KindBidPlaced,
		ListingID: domain.ListingID(7),
		Bidder:    bidder,
		Amount:    decimal.NewFromInt(80),
	}
	require.NoError(t, publisher.Publish(ctx, published))
	publisher.Close()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(kc.Brokers),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.Empty(t, fetches.Errors())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "7", string(records[0].Key))

	var got events.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, events.KindBidPlaced, got.Kind)
	assert.Equal(t, domain.ListingID(7), got.ListingID)
	assert.Equal(t, bidder, got.Bidder)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(80)))
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}
