// Package service implements the bid escrow and settlement engine: the
// state machine that establishes, replaces, refunds, and settles the
// highest accepted bid for each listing, plus the direct-sale and treasury
// paths. All fund movements commit inside the same call that mutates the
// listing record.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"gavel/internal/auction/models"
	bidstore "gavel/internal/auction/store/bids"
	listingstore "gavel/internal/auction/store/listing"
	"gavel/internal/events"
	"gavel/internal/exchange"
	"gavel/internal/funds"
	"gavel/internal/oracle"
	"gavel/internal/platform/metrics"
	"gavel/internal/registry"
	"gavel/internal/roles"
	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

// Type aliases for the collaborator interfaces the engine consumes.
type (
	ListingStore = listingstore.Store
	BidStore     = bidstore.Store
	Registry     = registry.Client
	Authorizer   = roles.Authorizer
	Oracle       = oracle.Verifier
	Exchange     = exchange.Converter
	Publisher    = events.Publisher
)

// Bank is the slice of the funds ledger the engine drives. *funds.Ledger
// satisfies it.
type Bank interface {
	Deposit(ctx context.Context, addr domain.Address, amount decimal.Decimal) error
	DepositTreasury(ctx context.Context, amount decimal.Decimal) error
	Balance(ctx context.Context, addr domain.Address) (decimal.Decimal, error)
	StableBalance(ctx context.Context, addr domain.Address) (decimal.Decimal, error)
	TreasuryBalance(ctx context.Context) (decimal.Decimal, error)
	PayWithRoyalty(ctx context.Context, buyer, creator domain.Address, price, royalty decimal.Decimal) error
	ReversePayment(ctx context.Context, buyer, creator domain.Address, price, royalty decimal.Decimal) error
	HoldEscrow(ctx context.Context, id domain.ListingID, bidder domain.Address, amount decimal.Decimal) (*funds.Escrow, error)
	ReleaseEscrow(ctx context.Context, id domain.ListingID) (funds.Escrow, error)
	RestoreEscrow(ctx context.Context, id domain.ListingID, e funds.Escrow) error
	EscrowTotal(ctx context.Context) (decimal.Decimal, error)
	WithdrawTreasury(ctx context.Context, to domain.Address, amount decimal.Decimal) error
}

// Service is the auction engine.
type Service struct {
	listings ListingStore
	bids     BidStore
	bank     Bank
	registry Registry
	auth     Authorizer
	oracle   Oracle
	exchange Exchange

	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     func() time.Time
	locks     *itemLocks

	// refRate and slippageBps define the default minimum-output guard
	// applied when a settlement caller does not supply one:
	// bestBid * refRate * (1 - slippageBps/10000).
	refRate        decimal.Decimal
	slippageBps    int64
	settleDeadline time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the expiry clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSlippage sets the reference rate and tolerance for the default
// settlement minimum-output guard.
func WithSlippage(refRate decimal.Decimal, bps int64) Option {
	return func(s *Service) {
		s.refRate = refRate
		s.slippageBps = bps
	}
}

// WithSettleDeadline bounds how long a settlement conversion may take.
func WithSettleDeadline(d time.Duration) Option {
	return func(s *Service) { s.settleDeadline = d }
}

func New(
	listings ListingStore,
	bids BidStore,
	bank Bank,
	reg Registry,
	auth Authorizer,
	verifier Oracle,
	converter Exchange,
	opts ...Option,
) (*Service, error) {
	if listings == nil || bids == nil || bank == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "listing store, bid store, and bank are required")
	}
	if reg == nil || auth == nil || verifier == nil || converter == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "registry, authorizer, oracle, and exchange are required")
	}

	s := &Service{
		listings:       listings,
		bids:           bids,
		bank:           bank,
		registry:       reg,
		auth:           auth,
		oracle:         verifier,
		exchange:       converter,
		logger:         slog.Default(),
		tracer:         otel.Tracer("gavel/auction"),
		clock:          time.Now,
		locks:          newItemLocks(),
		refRate:        decimal.NewFromInt(1),
		slippageBps:    100,
		settleDeadline: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create opens a new listing and mints ownership of the item to its
// creator. Creation is open to any caller acting as creator.
func (s *Service) Create(ctx context.Context, p models.ListingTerms) (*models.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "auction.create")
	defer span.End()

	if p.Creator.IsNone() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "creator is required")
	}
	if p.EditionSize == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "edition size must be at least one")
	}
	if !p.UnitPrice.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unit price must be positive")
	}
	if p.RoyaltyRate < 0 || p.RoyaltyRate > 100 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "royalty rate must be between 0 and 100")
	}
	if !p.EndsAt.IsZero() && !p.EndsAt.After(s.clock()) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "auction end must be in the future")
	}

	l := &models.Listing{
		Creator:     p.Creator,
		UnitPrice:   p.UnitPrice,
		EditionSize: p.EditionSize,
		RoyaltyRate: p.RoyaltyRate,
		BestBid:     decimal.Zero,
		EndsAt:      p.EndsAt,
	}
	id, err := s.listings.Create(ctx, l)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create listing")
	}

	// Supply is the direct-sale edition plus the single auctioned piece, so
	// the two tracks never compete for the same copy.
	if err := s.registry.Mint(ctx, id, p.Creator, p.EditionSize+1); err != nil {
		if delErr := s.listings.Delete(ctx, id); delErr != nil {
			s.logger.ErrorContext(ctx, "orphaned listing after failed mint",
				"listing_id", id.String(), "error", delErr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "mint item")
	}

	if s.metrics != nil {
		s.metrics.ListingsCreated.Inc()
	}
	s.emit(ctx, events.Event{
		Kind:      events.KindListingCreated,
		ListingID: id,
		Creator:   p.Creator,
		Amount:    p.UnitPrice,
	})
	s.logger.InfoContext(ctx, "listing created",
		"listing_id", id.String(), "creator", p.Creator.String())
	return l, nil
}

// Get returns one listing.
func (s *Service) Get(ctx context.Context, id domain.ListingID) (*models.Listing, error) {
	return s.listings.Get(ctx, id)
}

// List returns all listings in id order.
func (s *Service) List(ctx context.Context) ([]*models.Listing, error) {
	return s.listings.List(ctx)
}

// ListBids returns the audit trail of sealed submissions for a listing.
func (s *Service) ListBids(ctx context.Context, id domain.ListingID) ([]*models.BidSubmission, error) {
	if _, err := s.listings.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.bids.ListByListing(ctx, id)
}

// Purchase executes a direct fixed-price sale of one edition copy. The
// buyer is charged exactly the unit price; payment above it is left with
// the buyer rather than silently kept.
func (s *Service) Purchase(ctx context.Context, id domain.ListingID, buyer domain.Address, payment decimal.Decimal) error {
	ctx, span := s.tracer.Start(ctx, "auction.purchase")
	defer span.End()

	unlock := s.locks.acquire(id)
	defer unlock()

	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return err
	}
	if l.AuctionClosed {
		return dErrors.New(dErrors.CodeConflict, "auction settled; direct sale closed")
	}
	if l.SoldOut() {
		return dErrors.New(dErrors.CodeConflict, "edition sold out")
	}
	if payment.LessThan(l.UnitPrice) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "payment %s below unit price %s", payment, l.UnitPrice)
	}

	royalty := l.Royalty(l.UnitPrice)
	if err := s.bank.PayWithRoyalty(ctx, buyer, l.Creator, l.UnitPrice, royalty); err != nil {
		return err
	}

	if err := s.registry.Transfer(ctx, id, l.Creator, buyer); err != nil {
		if revErr := s.bank.ReversePayment(ctx, buyer, l.Creator, l.UnitPrice, royalty); revErr != nil {
			s.logger.ErrorContext(ctx, "payment reversal failed after transfer failure",
				"listing_id", id.String(), "error", revErr)
		}
		return dErrors.Wrap(err, dErrors.CodeDependency, "transfer item to buyer")
	}

	l.SoldCount++
	if err := s.listings.Update(ctx, l); err != nil {
		if trErr := s.registry.Transfer(ctx, id, buyer, l.Creator); trErr != nil {
			s.logger.ErrorContext(ctx, "transfer reversal failed after update failure",
				"listing_id", id.String(), "error", trErr)
		}
		if revErr := s.bank.ReversePayment(ctx, buyer, l.Creator, l.UnitPrice, royalty); revErr != nil {
			s.logger.ErrorContext(ctx, "payment reversal failed after update failure",
				"listing_id", id.String(), "error", revErr)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist purchase")
	}

	if s.metrics != nil {
		s.metrics.Purchases.Inc()
	}
	s.emit(ctx, events.Event{
		Kind:      events.KindPurchased,
		ListingID: id,
		Creator:   l.Creator,
		Buyer:     buyer,
		Amount:    l.UnitPrice,
	})
	if l.SoldOut() {
		if s.metrics != nil {
			s.metrics.SoldOuts.Inc()
		}
		s.emit(ctx, events.Event{Kind: events.KindSoldOut, ListingID: id, Creator: l.Creator})
	}
	s.logger.InfoContext(ctx, "purchase completed",
		"listing_id", id.String(), "buyer", buyer.String(), "sold_count", l.SoldCount)
	return nil
}

// SubmitBid verifies a sealed bid and, if it strictly exceeds the current
// best, escrows the bidder's funds and installs it. The displaced bidder's
// escrow is refunded in full in the same atomic bank step, refund ordered
// before the new hold becomes visible.
func (s *Service) SubmitBid(ctx context.Context, id domain.ListingID, bidder domain.Address, sealed string) (*models.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "auction.submit_bid")
	defer span.End()

	unlock := s.locks.acquire(id)
	defer unlock()

	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.AuctionClosed {
		s.rejectBid()
		return nil, dErrors.New(dErrors.CodeConflict, "auction already settled")
	}
	if !l.EndsAt.IsZero() && !s.clock().Before(l.EndsAt) {
		s.rejectBid()
		return nil, dErrors.New(dErrors.CodeConflict, "bidding window has ended")
	}
	if bidder == l.Creator {
		s.rejectBid()
		return nil, dErrors.New(dErrors.CodeInvalidInput, "creator cannot bid on own listing")
	}

	amount, err := s.oracle.Open(ctx, sealed, id, bidder)
	if err != nil {
		s.rejectBid()
		return nil, err
	}
	if amount.LessThanOrEqual(l.BestBid) {
		s.rejectBid()
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "bid must strictly exceed current best %s", l.BestBid)
	}

	// Audit record first: it documents the attempt whether or not the
	// escrow hold below succeeds, and is never authoritative.
	if err := s.bids.Put(ctx, &models.BidSubmission{
		ListingID:  id,
		Bidder:     bidder,
		Sealed:     sealed,
		ReceivedAt: s.clock(),
	}); err != nil {
		s.logger.WarnContext(ctx, "bid audit record failed",
			"listing_id", id.String(), "error", err)
	}

	displaced, err := s.bank.HoldEscrow(ctx, id, bidder, amount)
	if err != nil {
		s.rejectBid()
		return nil, err
	}

	prevBid, prevBidder := l.BestBid, l.BestBidder
	l.BestBid = amount
	l.BestBidder = bidder
	if err := s.listings.Update(ctx, l); err != nil {
		s.unwindEscrow(ctx, id, bidder, amount, displaced)
		l.BestBid, l.BestBidder = prevBid, prevBidder
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist bid")
	}

	if s.metrics != nil {
		s.metrics.BidsAccepted.Inc()
		s.setEscrowGauge(ctx)
	}
	s.emit(ctx, events.Event{
		Kind:      events.KindBidPlaced,
		ListingID: id,
		Bidder:    bidder,
		Amount:    amount,
	})
	s.logger.InfoContext(ctx, "bid accepted",
		"listing_id", id.String(), "bidder", bidder.String(), "amount", amount.String())
	return l, nil
}

// unwindEscrow restores the pre-bid escrow state: the new bidder's hold is
// released back to them and the displaced escrow, if any, is re-held.
func (s *Service) unwindEscrow(ctx context.Context, id domain.ListingID, bidder domain.Address, amount decimal.Decimal, displaced *funds.Escrow) {
	if _, err := s.bank.ReleaseEscrow(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "escrow unwind failed", "listing_id", id.String(), "error", err)
		return
	}
	if err := s.bank.Deposit(ctx, bidder, amount); err != nil {
		s.logger.ErrorContext(ctx, "escrow unwind refund failed", "listing_id", id.String(), "error", err)
	}
	if displaced != nil {
		if _, err := s.bank.HoldEscrow(ctx, id, displaced.Bidder, displaced.Amount); err != nil {
			s.logger.ErrorContext(ctx, "escrow unwind re-hold failed", "listing_id", id.String(), "error", err)
		}
	}
}

// Settle finalizes an auction: exactly once per listing, operator only.
// With no accepted bid it only closes the auction. Otherwise the item
// transfers to the winning bidder and the escrowed funds are converted to
// the stable asset and delivered to the creator, guarded by minOut. Any
// failure rolls the whole settlement back; the closed flag is never left
// set alongside partial effects.
func (s *Service) Settle(ctx context.Context, id domain.ListingID, actor domain.Address, minOut decimal.Decimal) error {
	ctx, span := s.tracer.Start(ctx, "auction.settle")
	defer span.End()

	allowed, err := s.auth.IsAuctionOperator(ctx, actor)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDependency, "check auction operator role")
	}
	if !allowed {
		return dErrors.New(dErrors.CodeUnauthorized, "auction operator role required")
	}

	unlock := s.locks.acquire(id)
	defer unlock()

	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return err
	}
	if l.AuctionClosed {
		return dErrors.New(dErrors.CodeConflict, "auction already settled")
	}
	if !l.EndsAt.IsZero() && s.clock().Before(l.EndsAt) {
		return dErrors.New(dErrors.CodeConflict, "auction has not ended yet")
	}

	if !l.HasBid() {
		l.AuctionClosed = true
		if err := s.listings.Update(ctx, l); err != nil {
			l.AuctionClosed = false
			return dErrors.Wrap(err, dErrors.CodeInternal, "persist settlement")
		}
		s.finishSettle(ctx, l, domain.AddressNone, decimal.Zero)
		return nil
	}

	escrow, err := s.bank.ReleaseEscrow(ctx, id)
	if err != nil {
		return err
	}

	// Authoritative state flips before the external transfers; failures
	// below roll it back explicitly.
	l.AuctionClosed = true
	if err := s.listings.Update(ctx, l); err != nil {
		l.AuctionClosed = false
		s.restoreEscrow(ctx, id, escrow)
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist settlement")
	}

	if err := s.registry.Transfer(ctx, id, l.Creator, escrow.Bidder); err != nil {
		s.rollbackClose(ctx, l)
		s.restoreEscrow(ctx, id, escrow)
		return dErrors.Wrap(err, dErrors.CodeDependency, "transfer item to winner")
	}

	if minOut.IsZero() {
		minOut = s.defaultMinOut(escrow.Amount)
	}
	deadline := s.clock().Add(s.settleDeadline)
	delivered, err := s.exchange.ConvertAndDeliver(ctx, escrow.Amount, minOut, l.Creator, deadline)
	if err != nil {
		if trErr := s.registry.Transfer(ctx, id, escrow.Bidder, l.Creator); trErr != nil {
			s.logger.ErrorContext(ctx, "transfer reversal failed after conversion failure",
				"listing_id", id.String(), "error", trErr)
		}
		s.rollbackClose(ctx, l)
		s.restoreEscrow(ctx, id, escrow)
		return dErrors.Wrap(err, dErrors.CodeDependency, "convert and deliver settlement funds")
	}

	s.finishSettle(ctx, l, escrow.Bidder, escrow.Amount)
	s.logger.InfoContext(ctx, "auction settled",
		"listing_id", id.String(),
		"winner", escrow.Bidder.String(),
		"amount", escrow.Amount.String(),
		"delivered", delivered.String(),
	)
	return nil
}

// defaultMinOut is the policy guard applied when the operator does not
// supply a minimum output: the reference-rate value of the bid less the
// configured slippage tolerance.
func (s *Service) defaultMinOut(amount decimal.Decimal) decimal.Decimal {
	tolerance := decimal.NewFromInt(10_000 - s.slippageBps).Div(decimal.NewFromInt(10_000))
	return amount.Mul(s.refRate).Mul(tolerance)
}

func (s *Service) rollbackClose(ctx context.Context, l *models.Listing) {
	l.AuctionClosed = false
	if err := s.listings.Update(ctx, l); err != nil {
		s.logger.ErrorContext(ctx, "settlement rollback failed; listing stuck closed",
			"listing_id", l.ID.String(), "error", err)
	}
}

func (s *Service) restoreEscrow(ctx context.Context, id domain.ListingID, e funds.Escrow) {
	if err := s.bank.RestoreEscrow(ctx, id, e); err != nil {
		s.logger.ErrorContext(ctx, "escrow restore failed",
			"listing_id", id.String(), "error", err)
	}
}

func (s *Service) finishSettle(ctx context.Context, l *models.Listing, winner domain.Address, amount decimal.Decimal) {
	if s.metrics != nil {
		s.metrics.Settlements.Inc()
		s.setEscrowGauge(ctx)
	}
	s.emit(ctx, events.Event{
		Kind:      events.KindAuctionEnded,
		ListingID: l.ID,
		Creator:   l.Creator,
		Winner:    winner,
		Amount:    amount,
	})
}

// Withdraw moves amount of the treasury balance to the caller.
func (s *Service) Withdraw(ctx context.Context, actor domain.Address, amount decimal.Decimal) error {
	allowed, err := s.auth.IsTreasuryOperator(ctx, actor)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDependency, "check treasury operator role")
	}
	if !allowed {
		return dErrors.New(dErrors.CodeUnauthorized, "treasury operator role required")
	}
	if err := s.bank.WithdrawTreasury(ctx, actor, amount); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "treasury withdrawal",
		"actor", actor.String(), "amount", amount.String())
	return nil
}

// Deposit credits an account's native balance; this is how bidders fund
// the escrow they post at bid time.
func (s *Service) Deposit(ctx context.Context, addr domain.Address, amount decimal.Decimal) error {
	return s.bank.Deposit(ctx, addr, amount)
}

// DepositTreasury accepts an unconditional engine top-up with no ledger
// effect.
func (s *Service) DepositTreasury(ctx context.Context, amount decimal.Decimal) error {
	return s.bank.DepositTreasury(ctx, amount)
}

// Balances returns an account's native and stable balances.
func (s *Service) Balances(ctx context.Context, addr domain.Address) (native, stable decimal.Decimal, err error) {
	if native, err = s.bank.Balance(ctx, addr); err != nil {
		return
	}
	stable, err = s.bank.StableBalance(ctx, addr)
	return
}

func (s *Service) rejectBid() {
	if s.metrics != nil {
		s.metrics.BidsRejected.Inc()
	}
}

func (s *Service) setEscrowGauge(ctx context.Context) {
	total, err := s.bank.EscrowTotal(ctx)
	if err != nil {
		return
	}
	f, _ := total.Float64()
	s.metrics.EscrowHeld.Set(f)
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"kind", string(event.Kind), "listing_id", event.ListingID.String(), "error", err)
	}
}
