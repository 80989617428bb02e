// Package roles answers the two authority questions the engine asks:
// whether an account may settle auctions and whether it may withdraw from
// the treasury. The Authorizer interface keeps authority polymorphic — one
// method per privilege rather than string-keyed role lookups — so tests can
// inject arbitrary authority without simulating a network identity.
package roles

import (
	"context"
	"sync"

	"gavel/pkg/domain"
)

// Authorizer is consulted by the service at the point a privilege is
// exercised.
type Authorizer interface {
	IsAuctionOperator(ctx context.Context, addr domain.Address) (bool, error)
	IsTreasuryOperator(ctx context.Context, addr domain.Address) (bool, error)
}

// Static holds role grants in memory. Grant issuance is out of scope for
// the engine; deployments seed this from configuration or wrap a real
// permission registry behind the same interface.
type Static struct {
	mu       sync.RWMutex
	auction  map[domain.Address]bool
	treasury map[domain.Address]bool
}

func NewStatic() *Static {
	return &Static{
		auction:  make(map[domain.Address]bool),
		treasury: make(map[domain.Address]bool),
	}
}

// GrantAuctionOperator marks addr as allowed to settle auctions.
func (s *Static) GrantAuctionOperator(addr domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auction[addr] = true
}

// GrantTreasuryOperator marks addr as allowed to withdraw from the treasury.
func (s *Static) GrantTreasuryOperator(addr domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treasury[addr] = true
}

func (s *Static) IsAuctionOperator(_ context.Context, addr domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auction[addr], nil
}

func (s *Static) IsTreasuryOperator(_ context.Context, addr domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury[addr], nil
}
