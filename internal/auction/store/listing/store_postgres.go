package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"gavel/internal/auction/models"
	"gavel/pkg/domain"
)

// PostgresStore persists listings in PostgreSQL. Amounts are stored as
// NUMERIC and read back through shopspring/decimal's string form.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the listings table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS listings (
			id             BIGSERIAL PRIMARY KEY,
			creator        TEXT        NOT NULL,
			unit_price     NUMERIC     NOT NULL,
			edition_size   INTEGER     NOT NULL CHECK (edition_size >= 1),
			royalty_rate   BIGINT      NOT NULL CHECK (royalty_rate BETWEEN 0 AND 100),
			sold_count     INTEGER     NOT NULL DEFAULT 0,
			best_bid       NUMERIC     NOT NULL DEFAULT 0,
			best_bidder    TEXT        NOT NULL DEFAULT '',
			auction_closed BOOLEAN     NOT NULL DEFAULT FALSE,
			ends_at        TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure listings schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, l *models.Listing) (domain.ListingID, error) {
	query := `
		INSERT INTO listings (creator, unit_price, edition_size, royalty_rate, sold_count,
		                      best_bid, best_bidder, auction_closed, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	var endsAt sql.NullTime
	if !l.EndsAt.IsZero() {
		endsAt = sql.NullTime{Time: l.EndsAt, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, query,
		l.Creator.String(), l.UnitPrice.String(), l.EditionSize, l.RoyaltyRate, l.SoldCount,
		l.BestBid.String(), l.BestBidder.String(), l.AuctionClosed, endsAt,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("create listing: %w", err)
	}
	return l.ID, nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ListingID) (*models.Listing, error) {
	query := `
		SELECT id, creator, unit_price, edition_size, royalty_rate, sold_count,
		       best_bid, best_bidder, auction_closed, ends_at, created_at, updated_at
		FROM listings WHERE id = $1
	`
	return scanListing(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) Update(ctx context.Context, l *models.Listing) error {
	query := `
		UPDATE listings
		SET sold_count = $2, best_bid = $3, best_bidder = $4, auction_closed = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		l.ID, l.SoldCount, l.BestBid.String(), l.BestBidder.String(), l.AuctionClosed,
	).Scan(&l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.ListingID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Listing, error) {
	query := `
		SELECT id, creator, unit_price, edition_size, royalty_rate, sold_count,
		       best_bid, best_bidder, auction_closed, ends_at, created_at, updated_at
		FROM listings ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		l          models.Listing
		unitPrice  string
		bestBid    string
		creator    string
		bestBidder string
		endsAt     sql.NullTime
	)
	err := row.Scan(&l.ID, &creator, &unitPrice, &l.EditionSize, &l.RoyaltyRate, &l.SoldCount,
		&bestBid, &bestBidder, &l.AuctionClosed, &endsAt, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}

	l.Creator = domain.Address(creator)
	l.BestBidder = domain.Address(bestBidder)
	if l.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("parse unit price: %w", err)
	}
	if l.BestBid, err = decimal.NewFromString(bestBid); err != nil {
		return nil, fmt.Errorf("parse best bid: %w", err)
	}
	if endsAt.Valid {
		l.EndsAt = endsAt.Time
	}
	return &l, nil
}
