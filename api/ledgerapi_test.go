package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sksmith/harvest-ledger/api"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/sksmith/harvest-ledger/core/user"
	"github.com/sksmith/harvest-ledger/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCreate(t *testing.T) {
	tests := []struct {
		name           string
		request        interface{}
		serviceErr     error
		wantStatusCode int
		wantCalls      int
	}{
		{
			name: "valid request is registered",
			request: ledger.NewLedgerRequest{
				Kind: ledger.Aggregate, ProductID: "tomatoes", QuantityUnit: "kg", Quantity: decimal.NewFromInt(100),
			},
			wantStatusCode: http.StatusCreated,
			wantCalls:      1,
		},
		{
			name:           "empty body is rejected before the service",
			request:        nil,
			wantStatusCode: http.StatusBadRequest,
			wantCalls:      0,
		},
		{
			name:           "invalid ledger is a bad request",
			request:        ledger.NewLedgerRequest{Kind: "CRATE"},
			serviceErr:     fmt.Errorf("%w: unknown ledger kind", ledger.ErrInvalidLedger),
			wantStatusCode: http.StatusBadRequest,
			wantCalls:      1,
		},
		{
			name:           "registering for another owner is forbidden",
			request:        ledger.NewLedgerRequest{Kind: ledger.Aggregate, OwnerID: "farm-2"},
			serviceErr:     ledger.ErrOwnershipMismatch,
			wantStatusCode: http.StatusForbidden,
			wantCalls:      1,
		},
		{
			name:           "duplicate registration is a conflict",
			request:        ledger.NewLedgerRequest{Kind: ledger.Aggregate, ProductID: "tomatoes"},
			serviceErr:     fmt.Errorf("%w: product tomatoes", ledger.ErrLedgerExists),
			wantStatusCode: http.StatusConflict,
			wantCalls:      1,
		},
		{
			name:           "storage failure is unavailable",
			request:        ledger.NewLedgerRequest{Kind: ledger.Aggregate},
			serviceErr:     &ledger.StorageError{Op: "insert", Err: errors.New("connection refused")},
			wantStatusCode: http.StatusServiceUnavailable,
			wantCalls:      1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts, svc := setupLedgerTestServer(producer)
			defer ts.Close()

			var gotActor ledger.ActorContext
			svc.CreateFunc = func(ctx context.Context, req ledger.NewLedgerRequest, actor ledger.ActorContext) (ledger.Ledger, error) {
				gotActor = actor
				if test.serviceErr != nil {
					return ledger.Ledger{}, test.serviceErr
				}
				l, err := ledger.NewLedger(ledger.NewLedgerRequest{
					Kind: req.Kind, OwnerID: actor.OwnerID, ProductID: req.ProductID, QuantityUnit: req.QuantityUnit, Quantity: req.Quantity,
				}, actor, time.Now())
				l.ID = "ledger-1"
				l.Version = 1
				return l, err
			}

			res := testutil.Post(ts.URL, test.request, t, creds)
			defer res.Body.Close()

			assert.Equal(t, test.wantStatusCode, res.StatusCode)
			svc.VerifyCount("Create", test.wantCalls, t)

			if test.wantStatusCode == http.StatusCreated {
				got := ledger.Ledger{}
				testutil.Unmarshal(res, &got, t)
				assert.Equal(t, "ledger-1", got.ID)
				assert.Equal(t, "farm-1", got.OwnerID)
				assert.True(t, got.Available.Equal(decimal.NewFromInt(100)))
				assert.Equal(t, ledger.InStock, got.Status)
				assert.Equal(t, producer.Actor(), gotActor)
			}
		})
	}
}

func TestLedgerList(t *testing.T) {
	tests := []struct {
		query          string
		wantOwner      string
		wantLimit      int
		wantOffset     int
		serviceErr     error
		wantStatusCode int
	}{
		{query: "", wantOwner: "", wantLimit: api.DefaultPageLimit, wantOffset: 0, wantStatusCode: http.StatusOK},
		{query: "?limit=5&offset=10", wantLimit: 5, wantOffset: 10, wantStatusCode: http.StatusOK},
		{query: "?limit=-3&offset=-1", wantLimit: api.DefaultPageLimit, wantOffset: 0, wantStatusCode: http.StatusOK},
		{query: "?limit=100000", wantLimit: api.MaxPageLimit, wantOffset: 0, wantStatusCode: http.StatusOK},
		{query: "?ownerId=farm-2", wantOwner: "farm-2", wantLimit: api.DefaultPageLimit, serviceErr: ledger.ErrOwnershipMismatch, wantStatusCode: http.StatusForbidden},
		{query: "", wantLimit: api.DefaultPageLimit, serviceErr: errors.New("boom"), wantStatusCode: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			ts, svc := setupLedgerTestServer(producer)
			defer ts.Close()

			gotOwner, gotLimit, gotOffset := "unset", -1, -1
			svc.ListFunc = func(ctx context.Context, ownerID string, limit, offset int, actor ledger.ActorContext) ([]ledger.Ledger, error) {
				gotOwner, gotLimit, gotOffset = ownerID, limit, offset
				if test.serviceErr != nil {
					return nil, test.serviceErr
				}
				return []ledger.Ledger{{ID: "a", ProductID: "apples"}, {ID: "b", ProductID: "beans"}}, nil
			}

			res := testutil.Get(ts.URL+test.query, t, creds)
			defer res.Body.Close()

			require.Equal(t, test.wantStatusCode, res.StatusCode)
			assert.Equal(t, test.wantOwner, gotOwner)
			assert.Equal(t, test.wantLimit, gotLimit)
			assert.Equal(t, test.wantOffset, gotOffset)

			if test.wantStatusCode == http.StatusOK {
				got := []ledger.Ledger{}
				testutil.Unmarshal(res, &got, t)
				require.Len(t, got, 2)
				assert.Equal(t, "a", got[0].ID)
				assert.Equal(t, "b", got[1].ID)
			}
		})
	}
}

func TestLedgerGet(t *testing.T) {
	ts, svc := setupLedgerTestServer(producer)
	defer ts.Close()

	svc.GetFunc = func(ctx context.Context, id string, actor ledger.ActorContext) (ledger.Ledger, error) {
		switch id {
		case "mine":
			return ledger.Ledger{ID: id, OwnerID: "farm-1", Status: ledger.LowStock}, nil
		case "theirs":
			return ledger.Ledger{}, ledger.ErrOwnershipMismatch
		default:
			return ledger.Ledger{}, ledger.ErrLedgerNotFound
		}
	}

	res := testutil.Get(ts.URL+"/mine", t, creds)
	require.Equal(t, http.StatusOK, res.StatusCode)
	got := ledger.Ledger{}
	testutil.Unmarshal(res, &got, t)
	assert.Equal(t, "mine", got.ID)
	assert.Equal(t, ledger.LowStock, got.Status)

	res = testutil.Get(ts.URL+"/theirs", t, creds)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = testutil.Get(ts.URL+"/missing", t, creds)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	gotErr := api.ErrResponse{}
	testutil.Unmarshal(res, &gotErr, t)
	assert.Equal(t, api.ErrNotFound.StatusText, gotErr.StatusText)
}

func TestLedgerDelete(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		wantStatusCode int
	}{
		{name: "empty ledger is deleted", wantStatusCode: http.StatusNoContent},
		{
			name:           "ledger holding stock is a conflict",
			serviceErr:     &ledger.GuardError{Kind: ledger.ErrLedgerInUse, LedgerID: "l1", Held: decimal.NewFromInt(3)},
			wantStatusCode: http.StatusConflict,
		},
		{name: "missing ledger is not found", serviceErr: ledger.ErrLedgerNotFound, wantStatusCode: http.StatusNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts, svc := setupLedgerTestServer(producer)
			defer ts.Close()

			gotID := ""
			svc.DeleteFunc = func(ctx context.Context, id string, actor ledger.ActorContext) error {
				gotID = id
				return test.serviceErr
			}

			res := testutil.Delete(ts.URL+"/l1", t, creds)
			defer res.Body.Close()

			assert.Equal(t, test.wantStatusCode, res.StatusCode)
			assert.Equal(t, "l1", gotID)
		})
	}
}

func TestLedgerLevels(t *testing.T) {
	tests := []struct {
		query          string
		wantDays       int
		wantStatusCode int
	}{
		{query: "", wantDays: 7, wantStatusCode: http.StatusOK},
		{query: "?days=30", wantDays: 30, wantStatusCode: http.StatusOK},
		{query: "?days=0", wantDays: -1, wantStatusCode: http.StatusBadRequest},
		{query: "?days=soon", wantDays: -1, wantStatusCode: http.StatusBadRequest},
	}

	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			ts, svc := setupLedgerTestServer(producer)
			defer ts.Close()

			gotDays := -1
			svc.LevelsFunc = func(ctx context.Context, id string, days int, actor ledger.ActorContext) (ledger.Levels, error) {
				gotDays = days
				return ledger.Levels{
					LedgerID:              id,
					Status:                ledger.ExpiringSoon,
					ExpiringSoon:          true,
					UtilizationPercentage: decimal.RequireFromString("12.5"),
				}, nil
			}

			res := testutil.Get(ts.URL+"/b1/levels"+test.query, t, creds)
			defer res.Body.Close()

			require.Equal(t, test.wantStatusCode, res.StatusCode)
			assert.Equal(t, test.wantDays, gotDays)

			if test.wantStatusCode == http.StatusOK {
				got := ledger.Levels{}
				testutil.Unmarshal(res, &got, t)
				assert.Equal(t, "b1", got.LedgerID)
				assert.True(t, got.ExpiringSoon)
				assert.True(t, got.UtilizationPercentage.Equal(decimal.RequireFromString("12.5")))
			}
		})
	}
}

func TestLedgerMovements(t *testing.T) {
	type call struct {
		method string
		id     string
		qty    decimal.Decimal
		ref    string
	}

	tests := []struct {
		name           string
		path           string
		request        api.QuantityRequestDto
		serviceErr     error
		wantCall       call
		wantStatusCode int
	}{
		{
			name:           "add stock",
			path:           "/l1/stock",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(40)},
			wantCall:       call{method: "AddStock", id: "l1", qty: decimal.NewFromInt(40)},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "reserve",
			path:           "/l1/reservations",
			request:        api.QuantityRequestDto{Quantity: decimal.RequireFromString("2.5"), OrderRef: "order-9"},
			wantCall:       call{method: "Reserve", id: "l1", qty: decimal.RequireFromString("2.5"), ref: "order-9"},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "release",
			path:           "/l1/releases",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(1), Reason: "order cancelled"},
			wantCall:       call{method: "Release", id: "l1", qty: decimal.NewFromInt(1), ref: "order cancelled"},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "complete sale",
			path:           "/l1/sales",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(2), OrderRef: "order-9"},
			wantCall:       call{method: "CompleteSale", id: "l1", qty: decimal.NewFromInt(2), ref: "order-9"},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "mark damaged",
			path:           "/l1/damages",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(3), Reason: "hail"},
			wantCall:       call{method: "MarkDamaged", id: "l1", qty: decimal.NewFromInt(3), ref: "hail"},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "insufficient stock is unprocessable",
			path:           "/l1/reservations",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(500), OrderRef: "order-9"},
			serviceErr:     &ledger.GuardError{Kind: ledger.ErrInsufficientAvailable, LedgerID: "l1"},
			wantCall:       call{method: "Reserve", id: "l1", qty: decimal.NewFromInt(500), ref: "order-9"},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:           "unavailable batch is unprocessable",
			path:           "/l1/reservations",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(1), OrderRef: "order-9"},
			serviceErr:     &ledger.GuardError{Kind: ledger.ErrNotAvailable, LedgerID: "l1"},
			wantCall:       call{method: "Reserve", id: "l1", qty: decimal.NewFromInt(1), ref: "order-9"},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:           "sale without reservation is unprocessable",
			path:           "/l1/sales",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(1)},
			serviceErr:     &ledger.GuardError{Kind: ledger.ErrInsufficientReserved, LedgerID: "l1"},
			wantCall:       call{method: "CompleteSale", id: "l1", qty: decimal.NewFromInt(1)},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:           "zero quantity is a bad request",
			path:           "/l1/stock",
			request:        api.QuantityRequestDto{Quantity: decimal.Zero},
			serviceErr:     ledger.ErrInvalidQuantity,
			wantCall:       call{method: "AddStock", id: "l1", qty: decimal.Zero},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "lost race is a conflict",
			path:           "/l1/damages",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(1)},
			serviceErr:     ledger.ErrConcurrentUpdateConflict,
			wantCall:       call{method: "MarkDamaged", id: "l1", qty: decimal.NewFromInt(1)},
			wantStatusCode: http.StatusConflict,
		},
		{
			name:           "unexpected failure is internal",
			path:           "/l1/releases",
			request:        api.QuantityRequestDto{Quantity: decimal.NewFromInt(1)},
			serviceErr:     errors.New("boom"),
			wantCall:       call{method: "Release", id: "l1", qty: decimal.NewFromInt(1)},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ts, svc := setupLedgerTestServer(orderService)
			defer ts.Close()

			var got call
			result := func(method, id string, qty decimal.Decimal, ref string) (ledger.Ledger, error) {
				got = call{method: method, id: id, qty: qty, ref: ref}
				if test.serviceErr != nil {
					return ledger.Ledger{}, test.serviceErr
				}
				return ledger.Ledger{ID: id, Version: 2}, nil
			}
			svc.AddStockFunc = func(ctx context.Context, id string, qty decimal.Decimal, actor ledger.ActorContext) (ledger.Ledger, error) {
				return result("AddStock", id, qty, "")
			}
			svc.ReserveFunc = func(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ledger.ActorContext) (ledger.Ledger, error) {
				return result("Reserve", id, qty, orderRef)
			}
			svc.ReleaseFunc = func(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ledger.ActorContext) (ledger.Ledger, error) {
				return result("Release", id, qty, reason)
			}
			svc.CompleteSaleFunc = func(ctx context.Context, id string, qty decimal.Decimal, orderRef string, actor ledger.ActorContext) (ledger.Ledger, error) {
				return result("CompleteSale", id, qty, orderRef)
			}
			svc.MarkDamagedFunc = func(ctx context.Context, id string, qty decimal.Decimal, reason string, actor ledger.ActorContext) (ledger.Ledger, error) {
				return result("MarkDamaged", id, qty, reason)
			}

			res := testutil.Put(ts.URL+test.path, test.request, t, creds)
			defer res.Body.Close()

			assert.Equal(t, test.wantStatusCode, res.StatusCode)
			assert.Equal(t, test.wantCall.method, got.method)
			assert.Equal(t, test.wantCall.id, got.id)
			assert.True(t, test.wantCall.qty.Equal(got.qty), "quantity got=%s want=%s", got.qty, test.wantCall.qty)
			assert.Equal(t, test.wantCall.ref, got.ref)
			svc.VerifyCount(test.wantCall.method, 1, t)

			if test.wantStatusCode == http.StatusOK {
				l := ledger.Ledger{}
				testutil.Unmarshal(res, &l, t)
				assert.Equal(t, int64(2), l.Version)
			}
		})
	}
}

func TestLedgerSubscribe(t *testing.T) {
	hub := ledger.NewHub()
	svc := ledger.NewMockLedgerService()
	ts, _ := setupAuthenticated(producer, api.NewLedgerApi(svc, hub, 7).ConfigureRouter)
	defer ts.Close()

	conn := testutil.DialWs(ts.URL+"/subscribe", t, creds)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, hub.AfterCommit(ctx, ledger.Event{ID: "e1", OwnerID: "farm-2", Topic: ledger.TopicStockAdded}))
	require.NoError(t, hub.AfterCommit(ctx, ledger.Event{ID: "e2", OwnerID: "farm-1", Topic: ledger.TopicQuantityReserved}))

	got := ledger.Event{}
	testutil.ReadWs(conn, &got, t)
	assert.Equal(t, "e2", got.ID)
	assert.Equal(t, ledger.TopicQuantityReserved, got.Topic)
}

func setupLedgerTestServer(usr user.User) (*httptest.Server, *ledger.MockLedgerService) {
	svc := ledger.NewMockLedgerService()
	ts, _ := setupAuthenticated(usr, api.NewLedgerApi(svc, ledger.NewHub(), 7).ConfigureRouter)
	return ts, svc
}
