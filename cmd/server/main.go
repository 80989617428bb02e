// Command server runs the auction engine: config from the environment,
// in-memory or PostgreSQL persistence, optional Redis role cache and Kafka
// event stream, and the HTTP API.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	auctionhandler "gavel/internal/auction/handler"
	"gavel/internal/auction/service"
	bidstore "gavel/internal/auction/store/bids"
	listingstore "gavel/internal/auction/store/listing"
	"gavel/internal/events"
	"gavel/internal/exchange"
	"gavel/internal/funds"
	"gavel/internal/oracle"
	"gavel/internal/platform/config"
	"gavel/internal/platform/httpserver"
	"gavel/internal/platform/logger"
	"gavel/internal/platform/metrics"
	"gavel/internal/platform/postgres"
	platformredis "gavel/internal/platform/redis"
	"gavel/internal/platform/token"
	"gavel/internal/registry"
	"gavel/internal/roles"
	httptransport "gavel/internal/transport/http"
	treasuryhandler "gavel/internal/treasury/handler"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	listings, bids, db, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ledger := funds.NewLedger()
	ownership := registry.NewInMemory()

	grants := roles.NewStatic()
	for _, addr := range cfg.AuctionOperators {
		grants.GrantAuctionOperator(addr)
	}
	for _, addr := range cfg.TreasuryOperators {
		grants.GrantTreasuryOperator(addr)
	}

	var authorizer roles.Authorizer = grants
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		authorizer = roles.NewCachedAuthorizer(grants, redisClient.Client, config.RoleCacheTTL, log)
		log.Info("role cache enabled", "ttl", config.RoleCacheTTL.String())
	}

	verifier, err := buildVerifier(cfg, log)
	if err != nil {
		return err
	}

	publisher, err := buildPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc, err := service.New(
		listings,
		bids,
		ledger,
		ownership,
		authorizer,
		verifier,
		exchange.NewFixedRate(cfg.ExchangeRate, ledger),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithPublisher(publisher),
		service.WithSlippage(cfg.ExchangeRate, cfg.SlippageBps),
		service.WithSettleDeadline(cfg.SettleDeadline),
	)
	if err != nil {
		return err
	}

	tokens := token.NewService(cfg.JWTSigningKey)
	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(log, checks,
		auctionhandler.New(svc, log, tokens),
		treasuryhandler.New(svc, log, tokens),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (service.ListingStore, service.BidStore, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory stores")
		return listingstore.NewInMemoryStore(), bidstore.NewInMemoryStore(), nil, nil
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	listings := listingstore.NewPostgresStore(db)
	if err := listings.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	bids := bidstore.NewPostgresStore(db)
	if err := bids.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	log.Info("using postgres stores")
	return listings, bids, db, nil
}

func buildVerifier(cfg config.Server, log *slog.Logger) (oracle.Verifier, error) {
	key := cfg.BidSealingKey
	if key == "" {
		// Ephemeral key: envelopes sealed before a restart will not open.
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		key = hex.EncodeToString(raw)
		log.Warn("BID_SEALING_KEY unset; generated an ephemeral sealing key")
	}
	return oracle.NewSealedBidVerifier(key)
}

func buildPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (events.Publisher, error) {
	if cfg.KafkaBrokers == "" {
		log.Info("using in-memory event publisher")
		return events.NewMemory(), nil
	}
	publisher, err := events.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return nil, err
	}
	log.Info("kafka event publisher connected", "topic", cfg.KafkaTopic)
	return publisher, nil
}
