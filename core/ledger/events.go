package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Topic string

const (
	TopicLedgerCreated    Topic = "ledger.created"
	TopicLedgerDeleted    Topic = "ledger.deleted"
	TopicStockAdded       Topic = "stock.added"
	TopicQuantityReserved Topic = "quantity.reserved"
	TopicQuantityReleased Topic = "quantity.released"
	TopicSaleCompleted    Topic = "sale.completed"
	TopicStockDamaged     Topic = "stock.damaged"
)

// Event is a value object describing a committed ledger change.
type Event struct {
	ID         string          `json:"id"`
	Topic      Topic           `json:"topic"`
	LedgerID   string          `json:"ledgerId"`
	Kind       Kind            `json:"kind"`
	OwnerID    string          `json:"ownerId"`
	ProductID  string          `json:"productId"`
	LotNumber  string          `json:"lotNumber,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Requested  decimal.Decimal `json:"requested"`
	OrderRef   string          `json:"orderRef,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	ActorID    string          `json:"actorId"`
	Buckets    Buckets         `json:"buckets"`
	Status     Status          `json:"status"`
	PrevStatus Status          `json:"previousStatus"`
	Version    int64           `json:"version"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func newEvent(topic Topic, before, after Ledger, requested, moved decimal.Decimal, actor ActorContext) Event {
	return Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		LedgerID:   after.ID,
		Kind:       after.Kind,
		OwnerID:    after.OwnerID,
		ProductID:  after.ProductID,
		LotNumber:  after.LotNumber,
		Quantity:   moved,
		Requested:  requested,
		ActorID:    actor.ActorID,
		Buckets:    after.Buckets,
		Status:     after.Status,
		PrevStatus: before.Status,
		Version:    after.Version,
		OccurredAt: after.UpdatedAt,
	}
}

// CommitHook runs after the store has confirmed a write. A failing hook never affects the committed
// change or the other hooks.
type CommitHook interface {
	AfterCommit(ctx context.Context, evt Event) error
}

type CommitHookFunc func(ctx context.Context, evt Event) error

func (f CommitHookFunc) AfterCommit(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// SinkHook publishes committed changes to an EventSink.
func SinkHook(sink EventSink) CommitHook {
	return CommitHookFunc(func(ctx context.Context, evt Event) error {
		return sink.Publish(ctx, evt)
	})
}

func runHooks(ctx context.Context, hooks []CommitHook, evt Event) {
	for i, h := range hooks {
		if err := runHook(ctx, h, evt); err != nil {
			log.Warn().
				Err(err).
				Int("hook", i).
				Str("topic", string(evt.Topic)).
				Str("ledgerId", evt.LedgerID).
				Str("eventId", evt.ID).
				Msg("post-commit hook failed, change remains committed")
		}
	}
}

func runHook(ctx context.Context, h CommitHook, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("hook panicked: %v", r)
		}
	}()
	return h.AfterCommit(ctx, evt)
}

type SubscriptionID string

// Hub fans committed events out to in-process subscribers such as websocket clients. Slow subscribers
// miss events rather than holding up the engine.
type Hub struct {
	mu   sync.RWMutex
	subs map[SubscriptionID]chan<- Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[SubscriptionID]chan<- Event)}
}

func (h *Hub) Subscribe(ch chan<- Event) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	log.Debug().Str("clientId", string(id)).Msg("subscribing to ledger events")
	return id
}

func (h *Hub) Unsubscribe(id SubscriptionID) {
	log.Debug().Str("clientId", string(id)).Msg("unsubscribing from ledger events")
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

func (h *Hub) AfterCommit(_ context.Context, evt Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			log.Warn().Str("clientId", string(id)).Str("eventId", evt.ID).Msg("subscriber is not keeping up, dropping event")
		}
	}
	return nil
}
