package ledger

import (
	"context"
	"time"
)

// Change is a guarded update of a single ledger. The store applies it only when the stored ledger is
// still at Version and still holds the Expected available and reserved quantities, and it must do so in
// one atomic step.
type Change struct {
	LedgerID  string
	Version   int64
	Expected  Buckets
	After     Buckets
	Status    Status
	UpdatedBy string
	UpdatedAt time.Time
}

type Repository interface {
	FindByID(ctx context.Context, id string) (Ledger, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Ledger, error)

	// Insert assigns the ledger an id and version and saves it.
	Insert(ctx context.Context, l *Ledger) error
	// ApplyDelta returns false without changing anything when the guard no longer holds.
	ApplyDelta(ctx context.Context, c Change) (bool, error)
	// SoftDelete returns false without changing anything when the ledger is no longer at version.
	SoftDelete(ctx context.Context, id string, version int64, actorID string, at time.Time) (bool, error)
}

// EventSink publishes committed ledger changes. Delivery is best effort.
type EventSink interface {
	Publish(ctx context.Context, evt Event) error
}
