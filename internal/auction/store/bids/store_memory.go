package bids

import (
	"context"
	"sort"
	"sync"
	"time"

	"gavel/internal/auction/models"
	"gavel/pkg/domain"
)

type key struct {
	listing domain.ListingID
	bidder  domain.Address
}

// InMemoryStore keeps submissions in a map keyed by listing and bidder.
type InMemoryStore struct {
	mu   sync.RWMutex
	subs map[key]models.BidSubmission
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{subs: make(map[key]models.BidSubmission)}
}

func (s *InMemoryStore) Put(_ context.Context, sub *models.BidSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *sub
	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = time.Now()
	}
	s.subs[key{listing: sub.ListingID, bidder: sub.Bidder}] = stored
	return nil
}

func (s *InMemoryStore) ListByListing(_ context.Context, id domain.ListingID) ([]*models.BidSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.BidSubmission
	for k, stored := range s.subs {
		if k.listing == id {
			sub := stored
			out = append(out, &sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}
