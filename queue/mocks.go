package queue

import (
	"context"

	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/sksmith/harvest-ledger/testutil"
)

// MockQueue stands in for RabbitMQ when rabbitmq.mock is set.
type MockQueue struct {
	PublishFunc func(ctx context.Context, evt ledger.Event) error
	*testutil.CallWatcher
}

func NewMockQueue() *MockQueue {
	return &MockQueue{
		PublishFunc: func(ctx context.Context, evt ledger.Event) error {
			return nil
		},
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (m *MockQueue) Publish(ctx context.Context, evt ledger.Event) error {
	m.AddCall(ctx, evt)
	return m.PublishFunc(ctx, evt)
}
