package sequencer

import (
	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/coreerr"
	"github.com/hft-exchange/lightning/internal/domain"
)

// The five guarded balance transitions below: increase, decrease, freeze,
// unfreeze, settleReduce/settleCredit. Each either fully applies or leaves
// the balance untouched; partial updates are never applied.

func increase(b *domain.AccountBalance, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return coreerr.Invalidf("increase amount must be positive")
	}
	b.Total = b.Total.Add(amount)
	b.Available = b.Available.Add(amount)
	return nil
}

func decrease(b *domain.AccountBalance, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return coreerr.Invalidf("decrease amount must be positive")
	}
	if b.Available.LessThan(amount) {
		return coreerr.InsufficientBalance()
	}
	b.Total = b.Total.Sub(amount)
	b.Available = b.Available.Sub(amount)
	return nil
}

// freeze is the freeze rule: available -= a; frozen += a, guarded
// on available >= a.
func freeze(b *domain.AccountBalance, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return coreerr.Invalidf("freeze amount must be positive")
	}
	if b.Available.LessThan(amount) {
		return coreerr.InsufficientBalance()
	}
	b.Available = b.Available.Sub(amount)
	b.Frozen = b.Frozen.Add(amount)
	return nil
}

// unfreeze is the refund rule: frozen -= a; available += a. A
// frozen balance smaller than a (only possible when a concurrent trade
// settlement already reduced it) is clamped to the residual rather than
// allowed to go negative, and the caller is told it clamped so it can log
// a warning.
func unfreeze(b *domain.AccountBalance, amount decimal.Decimal) (clamped bool) {
	if b.Frozen.LessThan(amount) {
		amount = b.Frozen
		clamped = true
	}
	b.Frozen = b.Frozen.Sub(amount)
	b.Available = b.Available.Add(amount)
	return clamped
}

// settleReduce applies the "frozen -= d; total -= d" half of a trade
// settlement, for the side whose collateral currency is being spent (quote
// for the buyer, base for the seller). It never reads available and can
// only shrink a balance the freeze already reserved.
func settleReduce(b *domain.AccountBalance, amount decimal.Decimal) {
	b.Frozen = b.Frozen.Sub(amount)
	b.Total = b.Total.Sub(amount)
}

// settleCredit applies the "total += d; available += d" half of a trade
// settlement, for the side receiving proceeds (base for the buyer, quote
// for the seller).
func settleCredit(b *domain.AccountBalance, amount decimal.Decimal) {
	b.Total = b.Total.Add(amount)
	b.Available = b.Available.Add(amount)
}
