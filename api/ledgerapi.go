package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sksmith/harvest-ledger/core/ledger"
)

type LedgerApi struct {
	service      ledger.Service
	subs         Subscriber
	expiringDays int
}

func NewLedgerApi(service ledger.Service, subs Subscriber, expiringDays int) *LedgerApi {
	return &LedgerApi{service: service, subs: subs, expiringDays: expiringDays}
}

func (a *LedgerApi) ConfigureRouter(r chi.Router) {
	r.HandleFunc("/subscribe", a.Subscribe)

	r.With(Paginate).Get("/", a.List)
	r.Post("/", a.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", a.Get)
		r.Delete("/", a.Delete)
		r.Get("/levels", a.Levels)

		r.Put("/stock", a.AddStock)
		r.Put("/reservations", a.Reserve)
		r.Put("/releases", a.Release)
		r.Put("/sales", a.CompleteSale)
		r.Put("/damages", a.MarkDamaged)
	})
}

// Subscribe streams committed ledger events to the client over a websocket. Only events for ledgers the
// caller may manage are sent.
func (a *LedgerApi) Subscribe(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	log.Info().Str("actor", act.ActorID).Msg("client requesting subscription")

	ch := make(chan ledger.Event, 16)
	id := a.subs.Subscribe(ch)

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		a.subs.Unsubscribe(id)
		log.Err(err).Msg("failed to establish ledger subscription connection")
		return
	}

	// The client never sends anything meaningful; reading only detects the close.
	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				a.subs.Unsubscribe(id)
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		defer a.subs.Unsubscribe(id)

		for evt := range ch {
			if !act.CanManage(evt.OwnerID) {
				continue
			}
			body, err := json.Marshal(&EventResponse{Event: evt})
			if err != nil {
				log.Err(err).Str("clientId", string(id)).Msg("failed to marshal ledger event")
				continue
			}
			if err = wsutil.WriteServerText(conn, body); err != nil {
				log.Debug().Err(err).Str("clientId", string(id)).Msg("failed to write ledger event, closing subscription")
				return
			}
		}
	}()
}

func (a *LedgerApi) Create(w http.ResponseWriter, r *http.Request) {
	data := &CreateLedgerRequestDto{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	l, err := a.service.Create(r.Context(), *data.NewLedgerRequest, actor(r))
	if err != nil {
		a.fail(w, r, "Create", err)
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewLedgerResponse(l))
}

func (a *LedgerApi) List(w http.ResponseWriter, r *http.Request) {
	limit := r.Context().Value(CtxKeyLimit).(int)
	offset := r.Context().Value(CtxKeyOffset).(int)

	ledgers, err := a.service.List(r.Context(), r.URL.Query().Get("ownerId"), limit, offset, actor(r))
	if err != nil {
		a.fail(w, r, "List", err)
		return
	}

	RenderList(w, r, NewLedgerListResponse(ledgers))
}

func (a *LedgerApi) Get(w http.ResponseWriter, r *http.Request) {
	l, err := a.service.Get(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		a.fail(w, r, "Get", err)
		return
	}

	Render(w, r, NewLedgerResponse(l))
}

func (a *LedgerApi) Delete(w http.ResponseWriter, r *http.Request) {
	if err := a.service.Delete(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		a.fail(w, r, "Delete", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *LedgerApi) Levels(w http.ResponseWriter, r *http.Request) {
	days := a.expiringDays
	if v := r.URL.Query().Get("days"); v != "" {
		var err error
		if days, err = strconv.Atoi(v); err != nil || days <= 0 {
			Render(w, r, ErrInvalidRequest(errors.New("days must be a positive whole number")))
			return
		}
	}

	lv, err := a.service.Levels(r.Context(), chi.URLParam(r, "id"), days, actor(r))
	if err != nil {
		a.fail(w, r, "Levels", err)
		return
	}

	Render(w, r, &LevelsResponse{Levels: lv})
}

func (a *LedgerApi) AddStock(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, "AddStock", func(ctx context.Context, id string, q *QuantityRequestDto) (ledger.Ledger, error) {
		return a.service.AddStock(ctx, id, q.Quantity, actor(r))
	})
}

func (a *LedgerApi) Reserve(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, "Reserve", func(ctx context.Context, id string, q *QuantityRequestDto) (ledger.Ledger, error) {
		return a.service.Reserve(ctx, id, q.Quantity, q.OrderRef, actor(r))
	})
}

func (a *LedgerApi) Release(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, "Release", func(ctx context.Context, id string, q *QuantityRequestDto) (ledger.Ledger, error) {
		return a.service.Release(ctx, id, q.Quantity, q.Reason, actor(r))
	})
}

func (a *LedgerApi) CompleteSale(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, "CompleteSale", func(ctx context.Context, id string, q *QuantityRequestDto) (ledger.Ledger, error) {
		return a.service.CompleteSale(ctx, id, q.Quantity, q.OrderRef, actor(r))
	})
}

func (a *LedgerApi) MarkDamaged(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, "MarkDamaged", func(ctx context.Context, id string, q *QuantityRequestDto) (ledger.Ledger, error) {
		return a.service.MarkDamaged(ctx, id, q.Quantity, q.Reason, actor(r))
	})
}

type movement func(ctx context.Context, id string, q *QuantityRequestDto) (ledger.Ledger, error)

func (a *LedgerApi) move(w http.ResponseWriter, r *http.Request, funcName string, fn movement) {
	data := &QuantityRequestDto{Quantity: decimal.Zero}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	l, err := fn(r.Context(), chi.URLParam(r, "id"), data)
	if err != nil {
		a.fail(w, r, funcName, err)
		return
	}

	Render(w, r, NewLedgerResponse(l))
}

func (a *LedgerApi) fail(w http.ResponseWriter, r *http.Request, funcName string, err error) {
	resp := LedgerErr(err)
	if resp == ErrInternalServer || resp == ErrUnavailable {
		log.Error().Err(err).Str("func", funcName).Str("ledgerId", chi.URLParam(r, "id")).Msg("ledger request failed")
	} else {
		log.Debug().Err(err).Str("func", funcName).Str("ledgerId", chi.URLParam(r, "id")).Msg("ledger request rejected")
	}
	Render(w, r, resp)
}
