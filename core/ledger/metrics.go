package ledger

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_ledger_operations",
			Help: "Number of ledger operations by outcome",
		},
		[]string{"op", "result"},
	)

	conflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_ledger_update_conflicts",
			Help: "Number of guarded ledger writes that lost a race and were retried",
		},
		[]string{"op"},
	)
)

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidLedger):
		return "invalid"
	case errors.Is(err, ErrInsufficientAvailable):
		return "insufficient_available"
	case errors.Is(err, ErrInsufficientReserved):
		return "insufficient_reserved"
	case errors.Is(err, ErrNotAvailable):
		return "not_available"
	case errors.Is(err, ErrLedgerNotFound):
		return "not_found"
	case errors.Is(err, ErrOwnershipMismatch):
		return "ownership_mismatch"
	case errors.Is(err, ErrLedgerInUse):
		return "in_use"
	case errors.Is(err, ErrLedgerExists):
		return "exists"
	case errors.Is(err, ErrConcurrentUpdateConflict):
		return "conflict"
	default:
		return "storage_unavailable"
	}
}

func init() {
	prometheus.MustRegister(opsTotal)
	prometheus.MustRegister(conflictsTotal)
}
