package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gavel/pkg/domain"
)

// Server captures process-level configuration so main stays lean. Empty
// DatabaseURL, RedisURL, or KafkaBrokers select the in-memory fallbacks.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  string
	KafkaTopic    string
	JWTSigningKey string

	// BidSealingKey opens sealed bid envelopes; 64 hex chars (32 bytes).
	BidSealingKey string

	// ExchangeRate is the native→stable conversion rate of the built-in
	// converter. SlippageBps bounds the default minimum-output guard used
	// when a settlement caller does not supply one.
	ExchangeRate decimal.Decimal
	SlippageBps  int64

	// SettleDeadline bounds how long a settlement conversion may take.
	SettleDeadline time.Duration

	// Operator grants seeded at startup, comma-separated addresses.
	AuctionOperators  []domain.Address
	TreasuryOperators []domain.Address
}

// RoleCacheTTL bounds how long a cached role decision may be served before
// the authority of record is consulted again.
var RoleCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:           envOr("GAVEL_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:     envOr("KAFKA_TOPIC", "gavel.auction.events"),
		JWTSigningKey:  envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		BidSealingKey:  os.Getenv("BID_SEALING_KEY"),
		ExchangeRate:   decimal.NewFromInt(1),
		SlippageBps:    100,
		SettleDeadline: 30 * time.Second,
	}

	if v := os.Getenv("EXCHANGE_RATE"); v != "" {
		if rate, err := decimal.NewFromString(v); err == nil && rate.IsPositive() {
			cfg.ExchangeRate = rate
		}
	}
	if v := os.Getenv("SLIPPAGE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil && bps >= 0 && bps <= 10_000 {
			cfg.SlippageBps = bps
		}
	}
	if v := os.Getenv("SETTLE_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SettleDeadline = d
		}
	}
	cfg.AuctionOperators = parseAddresses(os.Getenv("AUCTION_OPERATORS"))
	cfg.TreasuryOperators = parseAddresses(os.Getenv("TREASURY_OPERATORS"))
	return cfg
}

func parseAddresses(csv string) []domain.Address {
	var out []domain.Address
	for _, raw := range strings.Split(csv, ",") {
		addr, err := domain.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		out = append(out, addr)
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
