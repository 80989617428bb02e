// Package registry is the engine's interface to the ownership ledger: the
// external collaborator that records how many copies of each item every
// account holds. The engine never tracks possession itself; every possession
// change goes through this client.
package registry

import (
	"context"
	"sync"

	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

// Client mints editions and transfers copies between holders. Items are
// editioned: Mint issues the full supply to one account, Transfer moves one
// copy. Both operations fail loudly; a silent no-op here would desynchronize
// the auction ledger from the ownership ledger.
type Client interface {
	Mint(ctx context.Context, id domain.ListingID, owner domain.Address, copies uint32) error
	Transfer(ctx context.Context, id domain.ListingID, from, to domain.Address) error
	HoldingOf(ctx context.Context, id domain.ListingID, holder domain.Address) (uint32, error)
}

// InMemory is the in-process ownership ledger used in tests and
// single-process deployments.
type InMemory struct {
	mu       sync.RWMutex
	holdings map[domain.ListingID]map[domain.Address]uint32
}

func NewInMemory() *InMemory {
	return &InMemory{holdings: make(map[domain.ListingID]map[domain.Address]uint32)}
}

func (r *InMemory) Mint(_ context.Context, id domain.ListingID, owner domain.Address, copies uint32) error {
	if owner.IsNone() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot mint to the zero address")
	}
	if copies == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot mint zero copies")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holdings[id]; ok {
		return dErrors.Newf(dErrors.CodeConflict, "item %s already minted", id)
	}
	r.holdings[id] = map[domain.Address]uint32{owner: copies}
	return nil
}

func (r *InMemory) Transfer(_ context.Context, id domain.ListingID, from, to domain.Address) error {
	if to.IsNone() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot transfer to the zero address")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	held, ok := r.holdings[id]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "item %s not minted", id)
	}
	if held[from] == 0 {
		return dErrors.Newf(dErrors.CodeConflict, "item %s not held by %s", id, from)
	}
	held[from]--
	held[to]++
	return nil
}

func (r *InMemory) HoldingOf(_ context.Context, id domain.ListingID, holder domain.Address) (uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	held, ok := r.holdings[id]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeNotFound, "item %s not minted", id)
	}
	return held[holder], nil
}
