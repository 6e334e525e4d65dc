package api_test

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi"
	"github.com/sksmith/harvest-ledger/api"
	"github.com/sksmith/harvest-ledger/config"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/sksmith/harvest-ledger/core/user"
	"github.com/sksmith/harvest-ledger/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	testutil.ConfigLogging()
	os.Exit(m.Run())
}

var (
	producer     = user.User{Username: "farmer", OwnerID: "farm-1", Role: ledger.RoleProducer}
	orderService = user.User{Username: "orders", Role: ledger.RoleOrderService}
	admin        = user.User{Username: "root", Role: ledger.RoleAdmin}
	creds        = testutil.RequestOptions{Username: "someuser", Password: "somepass"}
)

func TestCorsConfig(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{origin: "https://evilorigin.com", want: ""},
		{origin: "http://evilorigin.com", want: ""},
		{origin: "https://market.harvestledger.io", want: "https://market.harvestledger.io"},
		{origin: "http://market.harvestledger.io", want: ""},
		{origin: "https://market.harvestledger.evil.io", want: ""},
		{origin: "http://localhost:8080", want: "http://localhost:8080"},
		{origin: "https://localhost:3000", want: "https://localhost:3000"},
	}

	ts, _, _ := setupRouter()
	defer ts.Close()

	for _, test := range tests {
		t.Run(test.origin, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+api.ApiPath+api.LedgerPath, nil)
			require.NoError(t, err)
			req.Header.Add("Origin", test.origin)

			res, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer res.Body.Close()

			assert.Equal(t, test.want, res.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestHealth(t *testing.T) {
	ts, _, _ := setupRouter()
	defer ts.Close()

	res, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := ioutil.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "UP", string(body))
}

func TestApiRequiresCredentials(t *testing.T) {
	ts, ledgerSvc, userSvc := setupRouter()
	defer ts.Close()

	res, err := http.Get(ts.URL + api.ApiPath + api.LedgerPath)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, res.Header.Get("WWW-Authenticate"), "Basic")
	userSvc.VerifyCount("Login", 0, t)
	ledgerSvc.VerifyCount("List", 0, t)
}

func TestApiRejectsBadCredentials(t *testing.T) {
	ts, ledgerSvc, userSvc := setupRouter()
	defer ts.Close()
	userSvc.LoginFunc = func(ctx context.Context, username, password string) (user.User, error) {
		return user.User{}, user.ErrInvalidCredentials
	}

	res := testutil.Get(ts.URL+api.ApiPath+api.LedgerPath, t, creds)
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	userSvc.VerifyCount("Login", 1, t)
	ledgerSvc.VerifyCount("List", 0, t)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _ := setupRouter()
	defer ts.Close()

	_, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := ioutil.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "harvest_ledger_url_hit_count")
}

func setupRouter() (*httptest.Server, *ledger.MockLedgerService, *user.MockUserService) {
	cfg := config.LoadDefaults()
	ledgerSvc := ledger.NewMockLedgerService()
	userSvc := user.NewMockUserService()
	userSvc.LoginFunc = loginAs(producer)
	r := api.ConfigureRouter(cfg, ledgerSvc, userSvc, ledger.NewHub())
	return httptest.NewServer(r), ledgerSvc, userSvc
}

// setupAuthenticated mounts routes behind Authenticate with a login that always succeeds as usr.
func setupAuthenticated(usr user.User, configure func(r chi.Router)) (*httptest.Server, *user.MockUserService) {
	userSvc := user.NewMockUserService()
	userSvc.LoginFunc = loginAs(usr)
	r := chi.NewRouter()
	r.With(api.Authenticate(userSvc)).Route("/", configure)
	return httptest.NewServer(r), userSvc
}

func loginAs(usr user.User) func(ctx context.Context, username, password string) (user.User, error) {
	return func(ctx context.Context, username, password string) (user.User, error) {
		return usr, nil
	}
}
