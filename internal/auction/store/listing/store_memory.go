package listing

import (
	"context"
	"sort"
	"sync"
	"time"

	"gavel/internal/auction/models"
	"gavel/pkg/domain"
)

// InMemoryStore keeps listings in a map. Copies go in and out so callers
// cannot mutate stored state behind the store's back.
type InMemoryStore struct {
	mu       sync.RWMutex
	listings map[domain.ListingID]models.Listing
	nextID   domain.ListingID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		listings: make(map[domain.ListingID]models.Listing),
		nextID:   1,
	}
}

func (s *InMemoryStore) Create(_ context.Context, l *models.Listing) (domain.ListingID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	now := time.Now()
	stored := *l
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.listings[id] = stored

	l.ID = id
	l.CreatedAt = now
	l.UpdatedAt = now
	return id, nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := stored
	return &out, nil
}

func (s *InMemoryStore) Update(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[l.ID]; !ok {
		return ErrNotFound
	}
	stored := *l
	stored.UpdatedAt = time.Now()
	s.listings[l.ID] = stored
	l.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.ListingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return ErrNotFound
	}
	delete(s.listings, id)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Listing, 0, len(s.listings))
	for _, stored := range s.listings {
		l := stored
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
