package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultExpiringSoonDays is the window inside which a batch is reported as EXPIRING_SOON.
const DefaultExpiringSoonDays = 7

// DeriveStatus classifies a ledger from its quantities, stock thresholds and time based facts.
// The checks are ordered and the first match wins, so an expired batch that also holds damaged stock
// reports EXPIRED.
func DeriveStatus(l Ledger, now time.Time) Status {
	if l.Kind == Batch {
		return batchStatus(l, now)
	}
	return aggregateStatus(l)
}

func aggregateStatus(l Ledger) Status {
	switch {
	case l.Available.IsZero():
		return OutOfStock
	case IsLowStock(l):
		return LowStock
	case IsOverstocked(l):
		return Overstock
	default:
		return InStock
	}
}

func batchStatus(l Ledger, now time.Time) Status {
	switch {
	case IsExpired(l, now):
		return Expired
	case IsExpiringSoon(l, now, DefaultExpiringSoonDays):
		return ExpiringSoon
	case l.Damaged.IsPositive():
		return Damaged
	case l.QualityGrade == Reject:
		return QualityIssue
	case l.Available.IsZero():
		return SoldOut
	default:
		return Available
	}
}

// IsLowStock is true when a minimum stock level is set and available stock has fallen to it.
func IsLowStock(l Ledger) bool {
	return l.MinStockLevel.Valid && l.Available.LessThanOrEqual(l.MinStockLevel.Decimal)
}

// IsOverstocked is true when a maximum stock level is set and total stock exceeds it.
func IsOverstocked(l Ledger) bool {
	return l.MaxStockLevel.Valid && l.Total.GreaterThan(l.MaxStockLevel.Decimal)
}

func IsExpired(l Ledger, now time.Time) bool {
	return l.ExpiryDate != nil && l.ExpiryDate.Before(now)
}

// IsExpiringSoon is true when the expiry date falls before now plus the given number of days. An already
// expired ledger is also expiring soon; DeriveStatus checks expiry first.
func IsExpiringSoon(l Ledger, now time.Time, days int) bool {
	return l.ExpiryDate != nil && l.ExpiryDate.Before(now.AddDate(0, 0, days))
}

var hundred = decimal.NewFromInt(100)

// UtilizationPercentage is the share of total stock that is no longer available, rounded half up to two
// decimal places. A ledger with no stock is zero percent utilized.
func UtilizationPercentage(l Ledger) decimal.Decimal {
	if l.Total.IsZero() {
		return decimal.Zero
	}
	return l.Total.Sub(l.Available).Mul(hundred).Div(l.Total).Round(2)
}

// Levels is a read-only report of the threshold and expiry checks for a ledger.
type Levels struct {
	LedgerID              string          `json:"ledgerId"`
	Status                Status          `json:"status"`
	LowStock              bool            `json:"lowStock"`
	Overstocked           bool            `json:"overstocked"`
	Expired               bool            `json:"expired"`
	ExpiringSoon          bool            `json:"expiringSoon"`
	UtilizationPercentage decimal.Decimal `json:"utilizationPercentage"`
}

func NewLevels(l Ledger, now time.Time, expiringWithinDays int) Levels {
	return Levels{
		LedgerID:              l.ID,
		Status:                DeriveStatus(l, now),
		LowStock:              IsLowStock(l),
		Overstocked:           IsOverstocked(l),
		Expired:               IsExpired(l, now),
		ExpiringSoon:          !IsExpired(l, now) && IsExpiringSoon(l, now, expiringWithinDays),
		UtilizationPercentage: UtilizationPercentage(l),
	}
}
