package service

import (
	"sync"

	"gavel/pkg/domain"
)

// itemLocks hands out one mutex per listing. Every mutating path holds the
// listing's lock for the full duration of the call, so settlement and
// bidding on the same item never both observe the pre-transition state.
// Locks are never reclaimed; the map is bounded by the number of listings.
type itemLocks struct {
	mu    sync.Mutex
	locks map[domain.ListingID]*sync.Mutex
}

func newItemLocks() *itemLocks {
	return &itemLocks{locks: make(map[domain.ListingID]*sync.Mutex)}
}

// acquire locks the listing's mutex and returns its release function.
func (il *itemLocks) acquire(id domain.ListingID) func() {
	il.mu.Lock()
	l, ok := il.locks[id]
	if !ok {
		l = &sync.Mutex{}
		il.locks[id] = l
	}
	il.mu.Unlock()

	l.Lock()
	return l.Unlock
}
