// Package exchange converts native settlement funds into the designated
// stable asset and delivers them to a recipient. The engine only depends on
// the convert-and-deliver contract; rate discovery is the collaborator's
// problem.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

// Converter converts amount and delivers the proceeds to recipient. It
// fails closed: if the deliverable output is below minOut or the deadline
// has passed, nothing is delivered and an error is returned.
type Converter interface {
	ConvertAndDeliver(ctx context.Context, amount, minOut decimal.Decimal, recipient domain.Address, deadline time.Time) (decimal.Decimal, error)
}

// StableCreditor is the slice of the funds ledger the converter needs.
type StableCreditor interface {
	CreditStable(ctx context.Context, addr domain.Address, amount decimal.Decimal) error
}

// FixedRate is a deterministic converter: output = amount * rate. It stands
// in for an external venue in tests and single-process deployments; the
// minOut guard behaves exactly as it would against a live venue.
type FixedRate struct {
	rate  decimal.Decimal
	bank  StableCreditor
	clock func() time.Time
}

type Option func(*FixedRate)

// WithClock overrides the deadline clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(f *FixedRate) {
		if clock != nil {
			f.clock = clock
		}
	}
}

func NewFixedRate(rate decimal.Decimal, bank StableCreditor, opts ...Option) *FixedRate {
	f := &FixedRate{rate: rate, bank: bank, clock: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FixedRate) ConvertAndDeliver(ctx context.Context, amount, minOut decimal.Decimal, recipient domain.Address, deadline time.Time) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, dErrors.New(dErrors.CodeInvalidInput, "conversion amount must be positive")
	}
	if !deadline.IsZero() && f.clock().After(deadline) {
		return decimal.Zero, dErrors.New(dErrors.CodeDependency, "conversion deadline exceeded")
	}

	out := amount.Mul(f.rate)
	if out.LessThan(minOut) {
		return decimal.Zero, dErrors.Newf(dErrors.CodeDependency, "conversion output %s below minimum %s", out, minOut)
	}

	if err := f.bank.CreditStable(ctx, recipient, out); err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeDependency, "deliver converted funds")
	}
	return out, nil
}
