package queue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/bunnyq"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/streadway/amqp"
)

type publishFunc func(ctx context.Context, exchange string, body []byte) error

type streamFunc func(ctx context.Context, queue string, handler func(amqp.Delivery))

// EventQueue publishes committed ledger changes to RabbitMQ. Reservation traffic goes to its own exchange so
// order services can bind to it without receiving every stock movement.
type EventQueue struct {
	publish             publishFunc
	stockExchange       string
	reservationExchange string
}

func New(bq *bunnyq.BunnyQ, stockExchange, reservationExchange string) *EventQueue {
	return &EventQueue{
		publish: func(ctx context.Context, exchange string, body []byte) error {
			return bq.Publish(ctx, exchange, body)
		},
		stockExchange:       stockExchange,
		reservationExchange: reservationExchange,
	}
}

func (q *EventQueue) Publish(ctx context.Context, evt ledger.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.WithMessage(err, "failed to serialize ledger event for queue")
	}
	exchange := q.exchangeFor(evt.Topic)
	if err = q.publish(ctx, exchange, body); err != nil {
		return errors.WithMessagef(err, "failed to publish %s to %s", evt.Topic, exchange)
	}
	log.Debug().Str("topic", string(evt.Topic)).Str("exchange", exchange).Str("eventId", evt.ID).Msg("published ledger event")
	return nil
}

func (q *EventQueue) exchangeFor(topic ledger.Topic) string {
	if strings.HasPrefix(string(topic), "quantity.") {
		return q.reservationExchange
	}
	return q.stockExchange
}

type LedgerCreator interface {
	Create(ctx context.Context, req ledger.NewLedgerRequest, actor ledger.ActorContext) (ledger.Ledger, error)
}

// RegistrationQueue consumes requests to open new ledgers, typically sent by the product catalog when a
// listing or a harvested batch is published. Messages that cannot be read or applied go to the dead
// letter exchange.
type RegistrationQueue struct {
	stream      streamFunc
	publish     publishFunc
	queue       string
	dltExchange string
	actor       ledger.ActorContext
}

const registrationActor = "registration-queue"

func NewRegistrationQueue(bq *bunnyq.BunnyQ, queue, dltExchange string) *RegistrationQueue {
	return &RegistrationQueue{
		stream: func(ctx context.Context, queue string, handler func(amqp.Delivery)) {
			bq.Stream(ctx, queue, handler, bunnyq.StreamOpAutoAck)
		},
		publish: func(ctx context.Context, exchange string, body []byte) error {
			return bq.Publish(ctx, exchange, body)
		},
		queue:       queue,
		dltExchange: dltExchange,
		actor:       ledger.SystemActor(registrationActor),
	}
}

func (r *RegistrationQueue) ConsumeRegistrations(ctx context.Context, creator LedgerCreator) {
	log.Info().Str("queue", r.queue).Msg("consuming ledger registrations")
	r.stream(ctx, r.queue, func(delivery amqp.Delivery) {
		r.handle(ctx, creator, delivery.Body)
	})
}

func (r *RegistrationQueue) handle(ctx context.Context, creator LedgerCreator, body []byte) {
	req := ledger.NewLedgerRequest{}
	if err := json.Unmarshal(body, &req); err != nil {
		log.Error().Err(err).Msg("error unmarshalling ledger registration, writing to dlt")
		r.sendToDlt(ctx, body)
		return
	}

	l, err := creator.Create(ctx, req, r.actor)
	if err != nil {
		log.Error().Err(err).
			Str("productId", req.ProductID).
			Str("lotNumber", req.LotNumber).
			Msg("error registering ledger, writing to dlt")
		r.sendToDlt(ctx, body)
		return
	}
	log.Info().Str("ledgerId", l.ID).Str("productId", l.ProductID).Msg("ledger registered from queue")
}

func (r *RegistrationQueue) sendToDlt(ctx context.Context, data []byte) {
	if err := r.publish(ctx, r.dltExchange, data); err != nil {
		log.Error().Err(err).Msg("error writing to dlt")
	}
}
