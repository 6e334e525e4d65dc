package ledgerrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sksmith/harvest-ledger/core"
	"github.com/sksmith/harvest-ledger/core/ledger"
)

// memRepo keeps ledgers in process. Every guarded write is a compare and swap under one mutex, which gives
// the same all-or-nothing behavior as the conditional UPDATE in the postgres repo.
type memRepo struct {
	mu      sync.Mutex
	ledgers map[string]ledger.Ledger
}

func NewMemoryRepo() ledger.Repository {
	return &memRepo{ledgers: make(map[string]ledger.Ledger)}
}

func (r *memRepo) FindByID(_ context.Context, id string) (ledger.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.ledgers[id]
	if !ok {
		return ledger.Ledger{}, errors.WithStack(core.ErrNotFound)
	}
	return l, nil
}

func (r *memRepo) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]ledger.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledgers := make([]ledger.Ledger, 0)
	for _, l := range r.ledgers {
		if l.OwnerID == ownerID && !l.Deleted {
			ledgers = append(ledgers, l)
		}
	}
	sort.Slice(ledgers, func(i, j int) bool {
		if ledgers[i].ProductID != ledgers[j].ProductID {
			return ledgers[i].ProductID < ledgers[j].ProductID
		}
		return ledgers[i].LotNumber < ledgers[j].LotNumber
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(ledgers) {
		return []ledger.Ledger{}, nil
	}
	ledgers = ledgers[offset:]
	if limit >= 0 && limit < len(ledgers) {
		ledgers = ledgers[:limit]
	}
	return ledgers, nil
}

func (r *memRepo) Insert(_ context.Context, l *ledger.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.ledgers {
		if !existing.Deleted && existing.Kind == l.Kind && existing.ProductID == l.ProductID && existing.LotNumber == l.LotNumber {
			return errors.Wrapf(ledger.ErrLedgerExists, "product %s lot %q", l.ProductID, l.LotNumber)
		}
	}

	l.ID = uuid.NewString()
	l.Version = 1
	r.ledgers[l.ID] = *l
	return nil
}

func (r *memRepo) ApplyDelta(_ context.Context, c ledger.Change) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.ledgers[c.LedgerID]
	if !ok || l.Deleted || l.Version != c.Version {
		return false, nil
	}
	if !l.Available.Equal(c.Expected.Available) || !l.Reserved.Equal(c.Expected.Reserved) {
		return false, nil
	}

	l.Buckets = c.After
	l.Status = c.Status
	l.UpdatedBy = c.UpdatedBy
	l.UpdatedAt = c.UpdatedAt
	l.Version++
	r.ledgers[l.ID] = l
	return true, nil
}

func (r *memRepo) SoftDelete(_ context.Context, id string, version int64, actorID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.ledgers[id]
	if !ok || l.Deleted || l.Version != version {
		return false, nil
	}

	l.Deleted = true
	l.UpdatedBy = actorID
	l.UpdatedAt = at
	l.Version++
	r.ledgers[id] = l
	return true, nil
}
