package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"gavel/internal/auction/models"
	bidstore "gavel/internal/auction/store/bids"
	listingstore "gavel/internal/auction/store/listing"
	"gavel/internal/events"
	"gavel/internal/exchange"
	"gavel/internal/funds"
	"gavel/internal/oracle"
	"gavel/internal/registry"
	"gavel/internal/roles"
	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

var (
	creator  = domain.Address("0x" + strings.Repeat("11", 20))
	buyer    = domain.Address("0x" + strings.Repeat("22", 20))
	alice    = domain.Address("0x" + strings.Repeat("aa", 20))
	bob      = domain.Address("0x" + strings.Repeat("bb", 20))
	operator = domain.Address("0x" + strings.Repeat("0f", 20))
)

const sealingKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type ServiceSuite struct {
	suite.Suite

	ctx       context.Context
	now       time.Time
	ledger    *funds.Ledger
	registry  *registry.InMemory
	roles     *roles.Static
	verifier  *oracle.SealedBidVerifier
	publisher *events.Memory
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ledger = funds.NewLedger()
	s.registry = registry.NewInMemory()
	s.roles = roles.NewStatic()
	s.roles.GrantAuctionOperator(operator)
	s.roles.GrantTreasuryOperator(operator)
	s.publisher = events.NewMemory()

	var err error
	s.verifier, err = oracle.NewSealedBidVerifier(sealingKey)
	s.Require().NoError(err)

	converter := exchange.NewFixedRate(dec("2"), s.ledger,
		exchange.WithClock(func() time.Time { return s.now }))

	s.svc, err = New(
		listingstore.NewInMemoryStore(),
		bidstore.NewInMemoryStore(),
		s.ledger,
		s.registry,
		s.roles,
		s.verifier,
		converter,
		WithPublisher(s.publisher),
		WithClock(func() time.Time { return s.now }),
		WithSlippage(dec("2"), 100),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) createListing(price string, edition uint32, royalty int64) *models.Listing {
	l, err := s.svc.Create(s.ctx, models.ListingTerms{
		Creator:     creator,
		UnitPrice:   dec(price),
		EditionSize: edition,
		RoyaltyRate: royalty,
	})
	s.Require().NoError(err)
	return l
}

func (s *ServiceSuite) deposit(addr domain.Address, amount string) {
	s.Require().NoError(s.svc.Deposit(s.ctx, addr, dec(amount)))
}

func (s *ServiceSuite) sealBid(amount string, id domain.ListingID, bidder domain.Address) string {
	sealed, err := s.verifier.Seal(dec(amount), id, bidder)
	s.Require().NoError(err)
	return sealed
}

func (s *ServiceSuite) balance(addr domain.Address) decimal.Decimal {
	b, err := s.ledger.Balance(s.ctx, addr)
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) TestCreateMintsToCreator() {
	l := s.createListing("100", 5, 10)

	// Edition copies plus the auctioned piece.
	held, err := s.registry.HoldingOf(s.ctx, l.ID, creator)
	s.Require().NoError(err)
	s.Equal(uint32(6), held)

	created := s.publisher.ByKind(events.KindListingCreated)
	s.Require().Len(created, 1)
	s.Equal(l.ID, created[0].ListingID)
}

func (s *ServiceSuite) TestCreateRejectsInvalidTerms() {
	cases := []struct {
		name   string
		params models.ListingTerms
	}{
		{"missing creator", models.ListingTerms{UnitPrice: dec("1"), EditionSize: 1}},
		{"zero edition", models.ListingTerms{Creator: creator, UnitPrice: dec("1")}},
		{"zero price", models.ListingTerms{Creator: creator, UnitPrice: decimal.Zero, EditionSize: 1}},
		{"royalty above 100", models.ListingTerms{Creator: creator, UnitPrice: dec("1"), EditionSize: 1, RoyaltyRate: 101}},
		{"negative royalty", models.ListingTerms{Creator: creator, UnitPrice: dec("1"), EditionSize: 1, RoyaltyRate: -1}},
		{"end in the past", models.ListingTerms{Creator: creator, UnitPrice: dec("1"), EditionSize: 1, EndsAt: s.now.Add(-time.Hour)}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.Create(s.ctx, tc.params)
			assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func (s *ServiceSuite) TestPurchaseSplitsRoyalty() {
	l := s.createListing("100", 2, 10)
	s.deposit(buyer, "250")

	s.Require().NoError(s.svc.Purchase(s.ctx, l.ID, buyer, dec("100")))

	s.True(s.balance(buyer).Equal(dec("150")))
	s.True(s.balance(creator).Equal(dec("90")))
	treasury, err := s.ledger.TreasuryBalance(s.ctx)
	s.Require().NoError(err)
	s.True(treasury.Equal(dec("10")))

	held, err := s.registry.HoldingOf(s.ctx, l.ID, buyer)
	s.Require().NoError(err)
	s.Equal(uint32(1), held)

	got, err := s.svc.Get(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(uint32(1), got.SoldCount)
	s.Len(s.publisher.ByKind(events.KindPurchased), 1)
}

func (s *ServiceSuite) TestPurchaseChargesExactlyUnitPrice() {
	l := s.createListing("100", 5, 0)
	s.deposit(buyer, "500")

	// Paying above the unit price charges only the unit price.
	s.Require().NoError(s.svc.Purchase(s.ctx, l.ID, buyer, dec("150")))
	s.True(s.balance(buyer).Equal(dec("400")))
	s.True(s.balance(creator).Equal(dec("100")))
}

func (s *ServiceSuite) TestPurchaseRejectsUnderpayment() {
	l := s.createListing("100", 5, 0)
	s.deposit(buyer, "500")

	err := s.svc.Purchase(s.ctx, l.ID, buyer, dec("99.99"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.True(s.balance(buyer).Equal(dec("500")))
}

func (s *ServiceSuite) TestPurchaseRejectsInsufficientBalance() {
	l := s.createListing("100", 5, 0)
	s.deposit(buyer, "50")

	err := s.svc.Purchase(s.ctx, l.ID, buyer, dec("100"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestPurchaseSellsOutEdition() {
	l := s.createListing("10", 2, 0)
	s.deposit(buyer, "100")

	s.Require().NoError(s.svc.Purchase(s.ctx, l.ID, buyer, dec("10")))
	s.Require().NoError(s.svc.Purchase(s.ctx, l.ID, creator, dec("10")))
	s.Len(s.publisher.ByKind(events.KindSoldOut), 1)

	err := s.svc.Purchase(s.ctx, l.ID, buyer, dec("10"))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	got, err := s.svc.Get(s.ctx, l.ID)
	s.Require().NoError(err)
	s.True(got.SoldOut())
}

func (s *ServiceSuite) TestPurchaseNotFound() {
	err := s.svc.Purchase(s.ctx, domain.ListingID(99), buyer, dec("10"))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestBidSequenceEscrowsAndRefunds() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")
	s.deposit(bob, "100")

	// Alice bids 50: escrowed.
	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("50", l.ID, alice))
	s.Require().NoError(err)
	s.True(s.balance(alice).Equal(dec("50")))

	// Bob bids 40: not strictly higher, rejected, nothing moves.
	_, err = s.svc.SubmitBid(s.ctx, l.ID, bob, s.sealBid("40", l.ID, bob))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.True(s.balance(bob).Equal(dec("100")))
	s.True(s.balance(alice).Equal(dec("50")))

	// Bob bids 80: alice refunded in full, bob escrowed.
	got, err := s.svc.SubmitBid(s.ctx, l.ID, bob, s.sealBid("80", l.ID, bob))
	s.Require().NoError(err)
	s.True(s.balance(alice).Equal(dec("100")))
	s.True(s.balance(bob).Equal(dec("20")))
	s.Equal(bob, got.BestBidder)
	s.True(got.BestBid.Equal(dec("80")))

	held, err := s.ledger.EscrowOf(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Require().NotNil(held)
	s.Equal(bob, held.Bidder)
	s.True(held.Amount.Equal(dec("80")))

	s.Len(s.publisher.ByKind(events.KindBidPlaced), 2)
}

func (s *ServiceSuite) TestBidEqualToBestRejected() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")
	s.deposit(bob, "100")

	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("50", l.ID, alice))
	s.Require().NoError(err)

	_, err = s.svc.SubmitBid(s.ctx, l.ID, bob, s.sealBid("50", l.ID, bob))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestBidByCreatorRejected() {
	l := s.createListing("100", 1, 0)
	s.deposit(creator, "100")

	_, err := s.svc.SubmitBid(s.ctx, l.ID, creator, s.sealBid("50", l.ID, creator))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestBidWithInsufficientBalanceRejected() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "10")

	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("50", l.ID, alice))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.True(s.balance(alice).Equal(dec("10")))
}

func (s *ServiceSuite) TestBidTamperedEnvelopeRejected() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")

	// Envelope sealed for bob cannot be submitted by alice.
	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("50", l.ID, bob))
	s.True(dErrors.HasCode(err, dErrors.CodeDependency))

	_, err = s.svc.SubmitBid(s.ctx, l.ID, alice, "not base64!!")
	s.True(dErrors.HasCode(err, dErrors.CodeDependency))
}

func (s *ServiceSuite) TestBidAfterWindowRejected() {
	endsAt := s.now.Add(time.Hour)
	l, err := s.svc.Create(s.ctx, models.ListingTerms{
		Creator: creator, UnitPrice: dec("100"), EditionSize: 1, EndsAt: endsAt,
	})
	s.Require().NoError(err)
	s.deposit(alice, "100")

	s.now = endsAt
	_, err = s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("50", l.ID, alice))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestSettleDeliversConvertedProceeds() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")
	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("80", l.ID, alice))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Settle(s.ctx, l.ID, operator, decimal.Zero))

	held, err := s.registry.HoldingOf(s.ctx, l.ID, alice)
	s.Require().NoError(err)
	s.Equal(uint32(1), held)

	stable, err := s.ledger.StableBalance(s.ctx, creator)
	s.Require().NoError(err)
	s.True(stable.Equal(dec("160")))

	escrow, err := s.ledger.EscrowOf(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Nil(escrow)

	got, err := s.svc.Get(s.ctx, l.ID)
	s.Require().NoError(err)
	s.True(got.AuctionClosed)

	ended := s.publisher.ByKind(events.KindAuctionEnded)
	s.Require().Len(ended, 1)
	s.Equal(alice, ended[0].Winner)
}

func (s *ServiceSuite) TestSettleExactlyOnce() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")
	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("80", l.ID, alice))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Settle(s.ctx, l.ID, operator, decimal.Zero))

	err = s.svc.Settle(s.ctx, l.ID, operator, decimal.Zero)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	stable, err := s.ledger.StableBalance(s.ctx, creator)
	s.Require().NoError(err)
	s.True(stable.Equal(dec("160")))
}

func (s *ServiceSuite) TestSettleRequiresOperator() {
	l := s.createListing("100", 1, 0)

	err := s.svc.Settle(s.ctx, l.ID, alice, decimal.Zero)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestSettleWithoutBidsJustCloses() {
	l := s.createListing("100", 1, 0)

	s.Require().NoError(s.svc.Settle(s.ctx, l.ID, operator, decimal.Zero))

	got, err := s.svc.Get(s.ctx, l.ID)
	s.Require().NoError(err)
	s.True(got.AuctionClosed)

	held, err := s.registry.HoldingOf(s.ctx, l.ID, creator)
	s.Require().NoError(err)
	s.Equal(uint32(2), held)

	err = s.svc.Purchase(s.ctx, l.ID, buyer, dec("100"))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestSettleBeforeWindowEndsRejected() {
	endsAt := s.now.Add(time.Hour)
	l, err := s.svc.Create(s.ctx, models.ListingTerms{
		Creator: creator, UnitPrice: dec("100"), EditionSize: 1, EndsAt: endsAt,
	})
	s.Require().NoError(err)

	err = s.svc.Settle(s.ctx, l.ID, operator, decimal.Zero)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.now = endsAt
	s.Require().NoError(s.svc.Settle(s.ctx, l.ID, operator, decimal.Zero))
}

func (s *ServiceSuite) TestSettleConversionFailureRollsBack() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")
	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("80", l.ID, alice))
	s.Require().NoError(err)

	// minOut above what the fixed rate can deliver: conversion refuses,
	// and the whole settlement unwinds.
	err = s.svc.Settle(s.ctx, l.ID, operator, dec("1000"))
	s.True(dErrors.HasCode(err, dErrors.CodeDependency))

	got, err := s.svc.Get(s.ctx, l.ID)
	s.Require().NoError(err)
	s.False(got.AuctionClosed)

	winnerHolding, err := s.registry.HoldingOf(s.ctx, l.ID, alice)
	s.Require().NoError(err)
	s.Zero(winnerHolding)

	held, err := s.ledger.EscrowOf(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Require().NotNil(held)
	s.Equal(alice, held.Bidder)

	stable, err := s.ledger.StableBalance(s.ctx, creator)
	s.Require().NoError(err)
	s.True(stable.IsZero())

	// A later settlement with an achievable guard succeeds.
	s.Require().NoError(s.svc.Settle(s.ctx, l.ID, operator, dec("160")))
}

func (s *ServiceSuite) TestBidAfterSettlementRejected() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")
	s.Require().NoError(s.svc.Settle(s.ctx, l.ID, operator, decimal.Zero))

	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("50", l.ID, alice))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestTreasuryWithdraw() {
	l := s.createListing("100", 1, 50)
	s.deposit(buyer, "100")
	s.Require().NoError(s.svc.Purchase(s.ctx, l.ID, buyer, dec("100")))

	err := s.svc.Withdraw(s.ctx, alice, dec("10"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Require().NoError(s.svc.Withdraw(s.ctx, operator, dec("30")))
	s.True(s.balance(operator).Equal(dec("30")))

	err = s.svc.Withdraw(s.ctx, operator, dec("100"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestTreasuryDeposit() {
	s.Require().NoError(s.svc.DepositTreasury(s.ctx, dec("500")))
	treasury, err := s.ledger.TreasuryBalance(s.ctx)
	s.Require().NoError(err)
	s.True(treasury.Equal(dec("500")))
}

func (s *ServiceSuite) TestListBidsReturnsAuditTrail() {
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")
	s.deposit(bob, "200")

	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("50", l.ID, alice))
	s.Require().NoError(err)
	_, err = s.svc.SubmitBid(s.ctx, l.ID, bob, s.sealBid("80", l.ID, bob))
	s.Require().NoError(err)

	subs, err := s.svc.ListBids(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Len(subs, 2)

	_, err = s.svc.ListBids(s.ctx, domain.ListingID(99))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDefaultMinOutGuardsSlippage() {
	// Reference rate 2, tolerance 100 bps: a bid of 80 requires at least
	// 158.4 out. The fixed rate delivers 160, so the default guard passes.
	l := s.createListing("100", 1, 0)
	s.deposit(alice, "100")
	_, err := s.svc.SubmitBid(s.ctx, l.ID, alice, s.sealBid("80", l.ID, alice))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Settle(s.ctx, l.ID, operator, decimal.Zero))
	stable, err := s.ledger.StableBalance(s.ctx, creator)
	s.Require().NoError(err)
	s.True(stable.Equal(dec("160")))
}

func TestDefaultMinOut(t *testing.T) {
	svc := &Service{refRate: dec("2"), slippageBps: 250}
	got := svc.defaultMinOut(dec("100"))
	require.True(t, got.Equal(dec("195")), "got %s", got)
}
