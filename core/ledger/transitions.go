package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// rules are the configurable parts of the bucket math.
type rules struct {
	aggregateSaleReducesTotal bool
	batchSaleReducesTotal     bool
	strictRelease             bool
}

// transition computes the buckets that result from applying qty to l. It returns the quantity actually
// moved, which only differs from qty when a release is clamped.
type transition func(l Ledger, qty decimal.Decimal, now time.Time) (after Buckets, moved decimal.Decimal, err error)

func guard(kind error, l Ledger, requested, held decimal.Decimal) error {
	return &GuardError{Kind: kind, LedgerID: l.ID, Requested: requested, Held: held}
}

func addStock(l Ledger, qty decimal.Decimal, _ time.Time) (Buckets, decimal.Decimal, error) {
	b := l.Buckets
	b.Total = b.Total.Add(qty)
	b.Available = b.Available.Add(qty)
	return b, qty, nil
}

func reserve(l Ledger, qty decimal.Decimal, now time.Time) (Buckets, decimal.Decimal, error) {
	if l.Available.LessThan(qty) {
		return Buckets{}, decimal.Zero, guard(ErrInsufficientAvailable, l, qty, l.Available)
	}
	if l.Kind == Batch {
		if IsExpired(l, now) || DeriveStatus(l, now) != Available {
			return Buckets{}, decimal.Zero, guard(ErrNotAvailable, l, qty, l.Available)
		}
	}
	b := l.Buckets
	b.Available = b.Available.Sub(qty)
	b.Reserved = b.Reserved.Add(qty)
	return b, qty, nil
}

func (r rules) release(l Ledger, qty decimal.Decimal, _ time.Time) (Buckets, decimal.Decimal, error) {
	if l.Reserved.IsZero() || (r.strictRelease && l.Reserved.LessThan(qty)) {
		return Buckets{}, decimal.Zero, guard(ErrInsufficientReserved, l, qty, l.Reserved)
	}
	moved := decimal.Min(qty, l.Reserved)
	b := l.Buckets
	b.Reserved = b.Reserved.Sub(moved)
	b.Available = b.Available.Add(moved)
	return b, moved, nil
}

func (r rules) completeSale(l Ledger, qty decimal.Decimal, _ time.Time) (Buckets, decimal.Decimal, error) {
	if l.Reserved.LessThan(qty) {
		return Buckets{}, decimal.Zero, guard(ErrInsufficientReserved, l, qty, l.Reserved)
	}
	b := l.Buckets
	b.Reserved = b.Reserved.Sub(qty)
	b.Sold = b.Sold.Add(qty)
	if r.saleReducesTotal(l.Kind) {
		b.Total = b.Total.Sub(qty)
	}
	return b, qty, nil
}

func (r rules) saleReducesTotal(k Kind) bool {
	if k == Batch {
		return r.batchSaleReducesTotal
	}
	return r.aggregateSaleReducesTotal
}

// markDamaged draws damaged stock from available first and takes any remainder from reserved.
func markDamaged(l Ledger, qty decimal.Decimal, _ time.Time) (Buckets, decimal.Decimal, error) {
	held := l.Available.Add(l.Reserved)
	if held.LessThan(qty) {
		return Buckets{}, decimal.Zero, guard(ErrInsufficientAvailable, l, qty, held)
	}
	fromAvailable := decimal.Min(qty, l.Available)
	fromReserved := qty.Sub(fromAvailable)

	b := l.Buckets
	b.Available = b.Available.Sub(fromAvailable)
	b.Reserved = b.Reserved.Sub(fromReserved)
	b.Damaged = b.Damaged.Add(qty)
	return b, qty, nil
}
