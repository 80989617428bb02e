// Package events publishes the engine's externally observable events for
// indexers and downstream consumers. Emission is best-effort relative to
// the ledger: a failed publish is logged, never rolled into the state
// transition that produced it.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gavel/pkg/domain"
)

// Kind identifies an event type on the wire.
type Kind string

const (
	KindListingCreated Kind = "listing.created"
	KindPurchased      Kind = "listing.purchased"
	KindSoldOut        Kind = "listing.sold_out"
	KindBidPlaced      Kind = "bid.placed"
	KindAuctionEnded   Kind = "auction.ended"
)

// Event carries the item id and the parties and amounts relevant to the
// transition. Unused fields stay zero for kinds that do not need them.
type Event struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	ListingID domain.ListingID `json:"listing_id"`
	Creator   domain.Address   `json:"creator,omitempty"`
	Buyer     domain.Address   `json:"buyer,omitempty"`
	Bidder    domain.Address   `json:"bidder,omitempty"`
	Winner    domain.Address   `json:"winner,omitempty"`
	Amount    decimal.Decimal  `json:"amount"`
	Timestamp time.Time        `json:"timestamp"`
}

// Publisher delivers events to whatever sink the deployment wired.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}
