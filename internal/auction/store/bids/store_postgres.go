package bids

import (
	"context"
	"database/sql"
	"fmt"

	"gavel/internal/auction/models"
	"gavel/pkg/domain"
)

// PostgresStore persists bid submissions in PostgreSQL, upserting on the
// (listing, bidder) pair so only the most recent envelope is retained.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the bid_submissions table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS bid_submissions (
			listing_id  BIGINT      NOT NULL,
			bidder      TEXT        NOT NULL,
			sealed      TEXT        NOT NULL,
			received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (listing_id, bidder)
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure bid_submissions schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, sub *models.BidSubmission) error {
	query := `
		INSERT INTO bid_submissions (listing_id, bidder, sealed)
		VALUES ($1, $2, $3)
		ON CONFLICT (listing_id, bidder) DO UPDATE SET
			sealed = EXCLUDED.sealed,
			received_at = now()
	`
	if _, err := s.db.ExecContext(ctx, query, sub.ListingID, sub.Bidder.String(), sub.Sealed); err != nil {
		return fmt.Errorf("put bid submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByListing(ctx context.Context, id domain.ListingID) ([]*models.BidSubmission, error) {
	query := `
		SELECT listing_id, bidder, sealed, received_at
		FROM bid_submissions WHERE listing_id = $1 ORDER BY received_at
	`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list bid submissions: %w", err)
	}
	defer rows.Close()

	var out []*models.BidSubmission
	for rows.Next() {
		var (
			sub    models.BidSubmission
			bidder string
		)
		if err := rows.Scan(&sub.ListingID, &bidder, &sub.Sealed, &sub.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan bid submission: %w", err)
		}
		sub.Bidder = domain.Address(bidder)
		out = append(out, &sub)
	}
	return out, rows.Err()
}
