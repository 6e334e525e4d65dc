package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sksmith/harvest-ledger/core"
)

const DefaultMaxRetries = 3

type Service interface {
	Create(ctx context.Context, req NewLedgerRequest, actor ActorContext) (Ledger, error)
	Delete(ctx context.Context, id string, actor ActorContext) error

	Get(ctx context.Context, id string, actor ActorContext) (Ledger, error)
	List(ctx context.Context, ownerID string, limit, offset int, actor ActorContext) ([]Ledger, error)
	Levels(ctx context.Context, id string, expiringWithinDays int, actor ActorContext) (Levels, error)

	AddStock(ctx context.Context, id string, qty decimal.Decimal, actor ActorContext) (Ledger, error)
	Reserve(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error)
	Release(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error)
	CompleteSale(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error)
	MarkDamaged(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error)
}

type service struct {
	repo       Repository
	clock      Clock
	hooks      []CommitHook
	maxRetries int
	rules      rules
}

type Option func(s *service)

func WithClock(c Clock) Option {
	return func(s *service) {
		s.clock = c
	}
}

// WithCommitHooks appends hooks that run, in order, after every committed change.
func WithCommitHooks(hooks ...CommitHook) Option {
	return func(s *service) {
		s.hooks = append(s.hooks, hooks...)
	}
}

// WithMaxRetries sets how many times a change that lost a race is re-read and re-applied before
// ErrConcurrentUpdateConflict is returned.
func WithMaxRetries(n int) Option {
	return func(s *service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func WithAggregateSaleReducesTotal(b bool) Option {
	return func(s *service) {
		s.rules.aggregateSaleReducesTotal = b
	}
}

func WithBatchSaleReducesTotal(b bool) Option {
	return func(s *service) {
		s.rules.batchSaleReducesTotal = b
	}
}

// WithStrictRelease rejects releases larger than the reserved quantity instead of clamping them.
func WithStrictRelease(b bool) Option {
	return func(s *service) {
		s.rules.strictRelease = b
	}
}

func NewService(repo Repository, options ...Option) Service {
	s := &service{
		repo:       repo,
		clock:      SystemClock{},
		maxRetries: DefaultMaxRetries,
		rules:      rules{aggregateSaleReducesTotal: true},
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, req NewLedgerRequest, actor ActorContext) (Ledger, error) {
	const funcName = "Create"

	if req.OwnerID == "" && actor.Role == RoleProducer {
		req.OwnerID = actor.OwnerID
	}
	if !actor.CanManage(req.OwnerID) {
		return Ledger{}, ErrOwnershipMismatch
	}

	l, err := NewLedger(req, actor, s.clock.Now())
	if err != nil {
		return Ledger{}, err
	}

	log.Info().
		Str("func", funcName).
		Str("kind", string(l.Kind)).
		Str("productId", l.ProductID).
		Str("lotNumber", l.LotNumber).
		Str("quantity", l.Total.String()).
		Msg("registering ledger")

	if err = s.repo.Insert(ctx, &l); err != nil {
		if !errors.Is(err, ErrLedgerExists) {
			err = &StorageError{Op: "insert", Err: err}
		}
		opsTotal.WithLabelValues(funcName, resultOf(err)).Inc()
		return Ledger{}, err
	}
	opsTotal.WithLabelValues(funcName, resultOf(nil)).Inc()

	runHooks(ctx, s.hooks, newEvent(TopicLedgerCreated, Ledger{}, l, l.Total, l.Total, actor))
	return l, nil
}

func (s *service) Delete(ctx context.Context, id string, actor ActorContext) error {
	const funcName = "Delete"

	for attempt := 0; ; attempt++ {
		l, err := s.load(ctx, id, actor)
		if err != nil {
			opsTotal.WithLabelValues(funcName, resultOf(err)).Inc()
			return err
		}
		if err = deletable(l); err != nil {
			opsTotal.WithLabelValues(funcName, resultOf(err)).Inc()
			return err
		}

		now := s.clock.Now()
		ok, err := s.repo.SoftDelete(ctx, id, l.Version, actor.ActorID, now)
		if err != nil {
			opsTotal.WithLabelValues(funcName, resultOf(ErrStorageUnavailable)).Inc()
			return &StorageError{Op: "soft delete", Err: err}
		}
		if ok {
			log.Info().Str("func", funcName).Str("ledgerId", id).Str("actor", actor.ActorID).Msg("ledger deleted")
			opsTotal.WithLabelValues(funcName, resultOf(nil)).Inc()

			deleted := l
			deleted.Version++
			deleted.Deleted = true
			deleted.UpdatedBy = actor.ActorID
			deleted.UpdatedAt = now
			runHooks(ctx, s.hooks, newEvent(TopicLedgerDeleted, l, deleted, decimal.Zero, decimal.Zero, actor))
			return nil
		}

		conflictsTotal.WithLabelValues(funcName).Inc()
		if attempt >= s.maxRetries {
			opsTotal.WithLabelValues(funcName, resultOf(ErrConcurrentUpdateConflict)).Inc()
			return ErrConcurrentUpdateConflict
		}
	}
}

func deletable(l Ledger) error {
	if !l.Reserved.IsZero() {
		return guard(ErrLedgerInUse, l, decimal.Zero, l.Reserved)
	}
	if l.Kind == Aggregate && !l.Total.IsZero() {
		return guard(ErrLedgerInUse, l, decimal.Zero, l.Total)
	}
	if l.Kind == Batch && !l.Sold.IsZero() {
		return guard(ErrLedgerInUse, l, decimal.Zero, l.Sold)
	}
	return nil
}

func (s *service) Get(ctx context.Context, id string, actor ActorContext) (Ledger, error) {
	return s.load(ctx, id, actor)
}

func (s *service) List(ctx context.Context, ownerID string, limit, offset int, actor ActorContext) ([]Ledger, error) {
	const funcName = "List"

	if ownerID == "" {
		ownerID = actor.OwnerID
	}
	if !actor.CanManage(ownerID) {
		return nil, ErrOwnershipMismatch
	}
	if offset < 0 {
		offset = 0
	}

	log.Debug().Str("func", funcName).Str("ownerId", ownerID).Int("limit", limit).Int("offset", offset).Msg("listing ledgers")

	ledgers, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return ledgers, nil
}

func (s *service) Levels(ctx context.Context, id string, expiringWithinDays int, actor ActorContext) (Levels, error) {
	l, err := s.load(ctx, id, actor)
	if err != nil {
		return Levels{}, err
	}
	if expiringWithinDays <= 0 {
		expiringWithinDays = DefaultExpiringSoonDays
	}
	return NewLevels(l, s.clock.Now(), expiringWithinDays), nil
}

func (s *service) AddStock(ctx context.Context, id string, qty decimal.Decimal, actor ActorContext) (Ledger, error) {
	return s.mutate(ctx, operation{name: "AddStock", topic: TopicStockAdded}, id, qty, actor, addStock)
}

func (s *service) Reserve(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error) {
	return s.mutate(ctx, operation{name: "Reserve", topic: TopicQuantityReserved, orderRef: orderRef}, id, qty, actor, reserve)
}

func (s *service) Release(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error) {
	return s.mutate(ctx, operation{name: "Release", topic: TopicQuantityReleased, reason: reason}, id, qty, actor, s.rules.release)
}

func (s *service) CompleteSale(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error) {
	return s.mutate(ctx, operation{name: "CompleteSale", topic: TopicSaleCompleted, orderRef: orderRef}, id, qty, actor, s.rules.completeSale)
}

func (s *service) MarkDamaged(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error) {
	return s.mutate(ctx, operation{name: "MarkDamaged", topic: TopicStockDamaged, reason: reason}, id, qty, actor, markDamaged)
}

type operation struct {
	name     string
	topic    Topic
	orderRef string
	reason   string
}

// mutate runs the read, check, guarded write cycle for one operation. When the guarded write loses a race
// the ledger is read again and the transition recomputed against the fresh quantities, so the guard is
// always checked against the exact state being replaced.
func (s *service) mutate(ctx context.Context, op operation, id string, qty decimal.Decimal, actor ActorContext, apply transition) (l Ledger, err error) {
	defer func() {
		opsTotal.WithLabelValues(op.name, resultOf(err)).Inc()
	}()

	if !qty.IsPositive() {
		return Ledger{}, ErrInvalidQuantity
	}

	log.Info().
		Str("func", op.name).
		Str("ledgerId", id).
		Str("quantity", qty.String()).
		Str("orderRef", op.orderRef).
		Str("actor", actor.ActorID).
		Msg("applying ledger operation")

	for attempt := 0; ; attempt++ {
		before, err := s.load(ctx, id, actor)
		if err != nil {
			return Ledger{}, err
		}

		now := s.clock.Now()
		after, moved, err := apply(before, qty, now)
		if err != nil {
			log.Debug().Err(err).Str("func", op.name).Str("ledgerId", id).Msg("ledger guard rejected operation")
			return Ledger{}, err
		}
		if after.negative() {
			return Ledger{}, guard(ErrInsufficientAvailable, before, qty, before.Available)
		}

		next := before
		next.Buckets = after
		next.UpdatedBy = actor.ActorID
		next.UpdatedAt = now
		next.Status = DeriveStatus(next, now)

		ok, err := s.repo.ApplyDelta(ctx, Change{
			LedgerID:  id,
			Version:   before.Version,
			Expected:  before.Buckets,
			After:     after,
			Status:    next.Status,
			UpdatedBy: next.UpdatedBy,
			UpdatedAt: now,
		})
		if err != nil {
			return Ledger{}, &StorageError{Op: "apply delta", Err: err}
		}

		if ok {
			next.Version = before.Version + 1

			evt := newEvent(op.topic, before, next, qty, moved, actor)
			evt.OrderRef = op.orderRef
			evt.Reason = op.reason
			runHooks(ctx, s.hooks, evt)

			return next, nil
		}

		conflictsTotal.WithLabelValues(op.name).Inc()
		log.Debug().
			Str("func", op.name).
			Str("ledgerId", id).
			Int64("version", before.Version).
			Int("attempt", attempt).
			Msg("ledger changed underneath operation")

		if attempt >= s.maxRetries {
			log.Warn().Str("func", op.name).Str("ledgerId", id).Int("attempts", attempt+1).Msg("giving up on contended ledger")
			return Ledger{}, ErrConcurrentUpdateConflict
		}
	}
}

// load reads a live ledger and checks the actor may act on it.
func (s *service) load(ctx context.Context, id string, actor ActorContext) (Ledger, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Ledger{}, ErrLedgerNotFound
		}
		return Ledger{}, &StorageError{Op: "find", Err: err}
	}
	if l.Deleted {
		return Ledger{}, ErrLedgerNotFound
	}
	if !actor.CanManage(l.OwnerID) {
		return Ledger{}, ErrOwnershipMismatch
	}
	return l, nil
}
