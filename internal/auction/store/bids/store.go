// Package bids retains the opaque bid envelopes for audit. One record per
// bidder per listing, holding the most recent submission.
package bids

import (
	"context"

	"gavel/internal/auction/models"
	"gavel/pkg/domain"
)

// Store is the audit persistence contract.
type Store interface {
	Put(ctx context.Context, sub *models.BidSubmission) error
	ListByListing(ctx context.Context, id domain.ListingID) ([]*models.BidSubmission, error)
}
