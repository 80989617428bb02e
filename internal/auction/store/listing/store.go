// Package listing persists the auction ledger's listing records.
package listing

import (
	"context"

	"gavel/internal/auction/models"
	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

// ErrNotFound keeps store-level 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "listing not found")

// Store is the listing persistence contract. Create assigns the next
// monotonic id; ids are never reused.
type Store interface {
	Create(ctx context.Context, l *models.Listing) (domain.ListingID, error)
	Get(ctx context.Context, id domain.ListingID) (*models.Listing, error)
	Update(ctx context.Context, l *models.Listing) error
	Delete(ctx context.Context, id domain.ListingID) error
	List(ctx context.Context) ([]*models.Listing, error)
}
