package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sksmith/harvest-ledger/testutil"
)

type MockLedgerService struct {
	CreateFunc       func(ctx context.Context, req NewLedgerRequest, actor ActorContext) (Ledger, error)
	DeleteFunc       func(ctx context.Context, id string, actor ActorContext) error
	GetFunc          func(ctx context.Context, id string, actor ActorContext) (Ledger, error)
	ListFunc         func(ctx context.Context, ownerID string, limit, offset int, actor ActorContext) ([]Ledger, error)
	LevelsFunc       func(ctx context.Context, id string, expiringWithinDays int, actor ActorContext) (Levels, error)
	AddStockFunc     func(ctx context.Context, id string, qty decimal.Decimal, actor ActorContext) (Ledger, error)
	ReserveFunc      func(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error)
	ReleaseFunc      func(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error)
	CompleteSaleFunc func(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error)
	MarkDamagedFunc  func(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error)
	*testutil.CallWatcher
}

func NewMockLedgerService() *MockLedgerService {
	return &MockLedgerService{
		CreateFunc: func(ctx context.Context, req NewLedgerRequest, actor ActorContext) (Ledger, error) {
			return Ledger{}, nil
		},
		DeleteFunc: func(ctx context.Context, id string, actor ActorContext) error { return nil },
		GetFunc: func(ctx context.Context, id string, actor ActorContext) (Ledger, error) {
			return Ledger{}, nil
		},
		ListFunc: func(ctx context.Context, ownerID string, limit, offset int, actor ActorContext) ([]Ledger, error) {
			return []Ledger{}, nil
		},
		LevelsFunc: func(ctx context.Context, id string, expiringWithinDays int, actor ActorContext) (Levels, error) {
			return Levels{}, nil
		},
		AddStockFunc: func(ctx context.Context, id string, qty decimal.Decimal, actor ActorContext) (Ledger, error) {
			return Ledger{}, nil
		},
		ReserveFunc: func(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error) {
			return Ledger{}, nil
		},
		ReleaseFunc: func(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error) {
			return Ledger{}, nil
		},
		CompleteSaleFunc: func(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error) {
			return Ledger{}, nil
		},
		MarkDamagedFunc: func(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error) {
			return Ledger{}, nil
		},
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (m *MockLedgerService) Create(ctx context.Context, req NewLedgerRequest, actor ActorContext) (Ledger, error) {
	m.AddCall(ctx, req, actor)
	return m.CreateFunc(ctx, req, actor)
}

func (m *MockLedgerService) Delete(ctx context.Context, id string, actor ActorContext) error {
	m.AddCall(ctx, id, actor)
	return m.DeleteFunc(ctx, id, actor)
}

func (m *MockLedgerService) Get(ctx context.Context, id string, actor ActorContext) (Ledger, error) {
	m.AddCall(ctx, id, actor)
	return m.GetFunc(ctx, id, actor)
}

func (m *MockLedgerService) List(ctx context.Context, ownerID string, limit, offset int, actor ActorContext) ([]Ledger, error) {
	m.AddCall(ctx, ownerID, limit, offset, actor)
	return m.ListFunc(ctx, ownerID, limit, offset, actor)
}

func (m *MockLedgerService) Levels(ctx context.Context, id string, expiringWithinDays int, actor ActorContext) (Levels, error) {
	m.AddCall(ctx, id, expiringWithinDays, actor)
	return m.LevelsFunc(ctx, id, expiringWithinDays, actor)
}

func (m *MockLedgerService) AddStock(ctx context.Context, id string, qty decimal.Decimal, actor ActorContext) (Ledger, error) {
	m.AddCall(ctx, id, qty, actor)
	return m.AddStockFunc(ctx, id, qty, actor)
}

func (m *MockLedgerService) Reserve(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error) {
	m.AddCall(ctx, id, qty, orderRef, actor)
	return m.ReserveFunc(ctx, id, qty, orderRef, actor)
}

func (m *MockLedgerService) Release(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error) {
	m.AddCall(ctx, id, qty, reason, actor)
	return m.ReleaseFunc(ctx, id, qty, reason, actor)
}

func (m *MockLedgerService) CompleteSale(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ActorContext) (Ledger, error) {
	m.AddCall(ctx, id, qty, orderRef, actor)
	return m.CompleteSaleFunc(ctx, id, qty, orderRef, actor)
}

func (m *MockLedgerService) MarkDamaged(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ActorContext) (Ledger, error) {
	m.AddCall(ctx, id, qty, reason, actor)
	return m.MarkDamagedFunc(ctx, id, qty, reason, actor)
}
