package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
	"github.com/sksmith/harvest-ledger/core/ledger"
)

type CreateLedgerRequestDto struct {
	*ledger.NewLedgerRequest
}

func (c *CreateLedgerRequestDto) Bind(_ *http.Request) error {
	if c.NewLedgerRequest == nil {
		return errors.New("missing required ledger fields")
	}
	return nil
}

// QuantityRequestDto is the body of every quantity movement. OrderRef applies to reservations and sales,
// Reason to releases and damage reports.
type QuantityRequestDto struct {
	Quantity decimal.Decimal `json:"quantity"`
	OrderRef string          `json:"orderRef,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

func (q *QuantityRequestDto) Bind(_ *http.Request) error {
	return nil
}

type LedgerResponse struct {
	ledger.Ledger
}

func NewLedgerResponse(l ledger.Ledger) *LedgerResponse {
	return &LedgerResponse{Ledger: l}
}

func (lr *LedgerResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func NewLedgerListResponse(ledgers []ledger.Ledger) []render.Renderer {
	list := make([]render.Renderer, 0, len(ledgers))
	for _, l := range ledgers {
		list = append(list, NewLedgerResponse(l))
	}
	return list
}

type LevelsResponse struct {
	ledger.Levels
}

func (lr *LevelsResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type EventResponse struct {
	ledger.Event
}

func (er *EventResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}
