// Package models holds the auction ledger's record types.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"gavel/pkg/domain"
)

// Listing is the authoritative record for one auctionable item. The auction
// service is the only writer of SoldCount, BestBid, BestBidder, and
// AuctionClosed; everything else is fixed at creation.
type Listing struct {
	ID          domain.ListingID
	Creator     domain.Address
	UnitPrice   decimal.Decimal
	EditionSize uint32
	// RoyaltyRate is the percentage of each direct sale diverted to the
	// treasury, 0..100.
	RoyaltyRate int64
	SoldCount   uint32

	// BestBid is monotonically non-decreasing while the auction is open;
	// BestBidder is AddressNone until the first accepted bid.
	BestBid    decimal.Decimal
	BestBidder domain.Address

	// AuctionClosed is terminal: once true, no bid or settlement is
	// accepted again.
	AuctionClosed bool

	// EndsAt, when non-zero, bounds the bidding window: bids strictly
	// before it, settlement at or after it.
	EndsAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListingTerms are the creation-time parameters of a listing, fixed for its
// lifetime.
type ListingTerms struct {
	Creator     domain.Address
	UnitPrice   decimal.Decimal
	EditionSize uint32
	RoyaltyRate int64
	EndsAt      time.Time
}

// SoldOut reports whether every direct-sale copy has been sold.
func (l *Listing) SoldOut() bool {
	return l.SoldCount >= l.EditionSize
}

// HasBid reports whether any bid has ever been accepted.
func (l *Listing) HasBid() bool {
	return !l.BestBidder.IsNone()
}

// Royalty computes the treasury cut of a direct sale at this listing's rate.
func (l *Listing) Royalty(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(l.RoyaltyRate)).Div(decimal.NewFromInt(100))
}

// BidSubmission is the audit record of a sealed bid: the most recent opaque
// envelope each bidder sent for each listing. It is retained for disputes
// and is never authoritative for ordering — the opened BestBid is.
type BidSubmission struct {
	ListingID  domain.ListingID
	Bidder     domain.Address
	Sealed     string
	ReceivedAt time.Time
}
