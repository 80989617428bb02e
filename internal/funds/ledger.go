// Package funds implements the engine's custodied money: per-account native
// and stable-asset balances, per-listing bid escrow, and the shared treasury
// balance. Every compound operation commits atomically under one lock so a
// partially applied fund movement is never observable.
package funds

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

// Escrow is the funds held for the current best bid of one listing.
type Escrow struct {
	Bidder domain.Address
	Amount decimal.Decimal
}

// Ledger is the in-process funds ledger. The treasury balance is global, not
// item-scoped: withdrawal authority is gated by role, not by per-item
// accounting.
type Ledger struct {
	mu       sync.Mutex
	native   map[domain.Address]decimal.Decimal
	stable   map[domain.Address]decimal.Decimal
	escrow   map[domain.ListingID]Escrow
	treasury decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{
		native: make(map[domain.Address]decimal.Decimal),
		stable: make(map[domain.Address]decimal.Decimal),
		escrow: make(map[domain.ListingID]Escrow),
	}
}

// Deposit credits an account's native balance. Deposits are unconditional.
func (l *Ledger) Deposit(_ context.Context, addr domain.Address, amount decimal.Decimal) error {
	if addr.IsNone() || !amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "deposit requires an account and a positive amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.native[addr] = l.native[addr].Add(amount)
	return nil
}

// DepositTreasury tops up the engine's own balance with no ledger effect.
func (l *Ledger) DepositTreasury(_ context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "deposit requires a positive amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.treasury = l.treasury.Add(amount)
	return nil
}

// Balance returns an account's native balance.
func (l *Ledger) Balance(_ context.Context, addr domain.Address) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.native[addr], nil
}

// StableBalance returns an account's stable-asset balance.
func (l *Ledger) StableBalance(_ context.Context, addr domain.Address) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stable[addr], nil
}

// TreasuryBalance returns the engine's accumulated royalty balance.
func (l *Ledger) TreasuryBalance(_ context.Context) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.treasury, nil
}

// PayWithRoyalty executes a direct-sale payment: the buyer is debited price,
// the creator is credited price minus royalty, and the royalty accrues to
// the treasury. All three moves commit together or not at all.
func (l *Ledger) PayWithRoyalty(_ context.Context, buyer, creator domain.Address, price, royalty decimal.Decimal) error {
	if royalty.IsNegative() || royalty.GreaterThan(price) {
		return dErrors.New(dErrors.CodeInvalidInput, "royalty out of range")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.native[buyer].LessThan(price) {
		return dErrors.New(dErrors.CodeInvalidInput, "insufficient balance")
	}
	l.native[buyer] = l.native[buyer].Sub(price)
	l.native[creator] = l.native[creator].Add(price.Sub(royalty))
	l.treasury = l.treasury.Add(royalty)
	return nil
}

// ReversePayment undoes a PayWithRoyalty after a downstream step failed.
// Compensation may drive the creator's balance negative if they spent the
// proceeds between the two steps; the window is bounded by the per-item
// lock held by the caller.
func (l *Ledger) ReversePayment(_ context.Context, buyer, creator domain.Address, price, royalty decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.native[creator] = l.native[creator].Sub(price.Sub(royalty))
	l.treasury = l.treasury.Sub(royalty)
	l.native[buyer] = l.native[buyer].Add(price)
	return nil
}

// HoldEscrow debits the bidder and installs their funds as the listing's
// escrow. A previously held escrow is refunded to its bidder in the same
// atomic step, refund applied before the new hold becomes visible. Returns
// the displaced escrow, if any.
func (l *Ledger) HoldEscrow(_ context.Context, id domain.ListingID, bidder domain.Address, amount decimal.Decimal) (*Escrow, error) {
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "escrow amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.native[bidder].LessThan(amount) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "insufficient balance to escrow bid")
	}

	var displaced *Escrow
	if prev, ok := l.escrow[id]; ok {
		l.native[prev.Bidder] = l.native[prev.Bidder].Add(prev.Amount)
		displaced = &prev
	}
	l.native[bidder] = l.native[bidder].Sub(amount)
	l.escrow[id] = Escrow{Bidder: bidder, Amount: amount}
	return displaced, nil
}

// ReleaseEscrow removes and returns the listing's escrow for settlement. The
// caller is responsible for delivering the funds; RestoreEscrow undoes the
// release if delivery fails.
func (l *Ledger) ReleaseEscrow(_ context.Context, id domain.ListingID) (Escrow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.escrow[id]
	if !ok {
		return Escrow{}, dErrors.New(dErrors.CodeConflict, "no escrow held for listing")
	}
	delete(l.escrow, id)
	return e, nil
}

// RestoreEscrow reinstates a released escrow after a failed settlement.
func (l *Ledger) RestoreEscrow(_ context.Context, id domain.ListingID, e Escrow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.escrow[id]; ok {
		return dErrors.New(dErrors.CodeConflict, "escrow already held for listing")
	}
	l.escrow[id] = e
	return nil
}

// EscrowOf returns the escrow currently held for a listing, or nil.
func (l *Ledger) EscrowOf(_ context.Context, id domain.ListingID) (*Escrow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.escrow[id]; ok {
		return &e, nil
	}
	return nil, nil
}

// EscrowTotal sums all held escrow, for the metrics gauge.
func (l *Ledger) EscrowTotal(_ context.Context) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for _, e := range l.escrow {
		total = total.Add(e.Amount)
	}
	return total, nil
}

// WithdrawTreasury moves amount from the treasury to an account's native
// balance.
func (l *Ledger) WithdrawTreasury(_ context.Context, to domain.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "withdrawal amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.treasury.LessThan(amount) {
		return dErrors.New(dErrors.CodeInvalidInput, "insufficient balance")
	}
	l.treasury = l.treasury.Sub(amount)
	l.native[to] = l.native[to].Add(amount)
	return nil
}

// CreditStable credits an account's stable-asset balance; used by the
// exchange when delivering converted settlement proceeds.
func (l *Ledger) CreditStable(_ context.Context, addr domain.Address, amount decimal.Decimal) error {
	if addr.IsNone() || amount.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidInput, "credit requires an account and a non-negative amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stable[addr] = l.stable[addr].Add(amount)
	return nil
}
