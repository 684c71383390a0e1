package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/ledgercore/internal/domain"
	"github.com/punchamoorthee/ledgercore/internal/service"
	"github.com/punchamoorthee/ledgercore/internal/store"
)

type testEnv struct {
	store  *store.MemoryStore
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transfers := service.NewTransferService(mem, logger, service.TransferOptions{})
	queries := service.NewQueryService(mem)
	handler := NewHandler(mem, transfers, queries)
	return &testEnv{store: mem, router: NewRouter(handler)}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(t *testing.T, name, balance string) *domain.Account {
	t.Helper()
	account, err := e.store.Seed(context.Background(), store.CreateAccountParams{
		OwnerID: uuid.New(),
		Name:    name,
	}, decimal.RequireFromString(balance))
	require.NoError(t, err)
	return account
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateAccount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/v1/accounts", map[string]string{
		"ownerId":  uuid.NewString(),
		"name":     "savings",
		"type":     "SAVINGS",
		"currency": "eur",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	account := decode[domain.Account](t, rec)
	assert.NotEqual(t, uuid.Nil, account.ID)
	assert.Equal(t, "savings", account.Name)
	assert.Equal(t, domain.AccountTypeSavings, account.Type)
	assert.Equal(t, "EUR", account.Currency)
	assert.True(t, account.Balance.IsZero())
}

func TestCreateAccount_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing owner", map[string]string{"name": "x"}},
		{"missing name", map[string]string{"ownerId": uuid.NewString()}},
		{"bad currency", map[string]string{"ownerId": uuid.NewString(), "name": "x", "currency": "EURO"}},
		{"bad type", map[string]string{"ownerId": uuid.NewString(), "name": "x", "type": "CREDIT"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/v1/accounts", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetAccount(t *testing.T) {
	env := newTestEnv(t)
	account := env.seed(t, "main", "12.34")

	rec := env.do(t, "GET", "/api/v1/accounts/"+account.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.Account](t, rec)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("12.34")))

	rec = env.do(t, "GET", "/api/v1/accounts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "GET", "/api/v1/accounts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransfer(t *testing.T) {
	env := newTestEnv(t)
	x := env.seed(t, "x", "100")
	y := env.seed(t, "y", "50")

	rec := env.do(t, "POST", "/api/v1/transfers", map[string]interface{}{
		"debitAccountId":  x.ID,
		"creditAccountId": y.ID,
		"amount":          "30",
		"description":     "rent",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	txn := decode[domain.Transaction](t, rec)
	assert.Equal(t, domain.StatusCompleted, txn.Status)
	assert.Equal(t, "TRANSFER", txn.Type)
	assert.True(t, txn.Amount.Equal(decimal.RequireFromString("30")))
	require.NotNil(t, txn.DebitAccount)
	assert.Equal(t, "x", txn.DebitAccount.Name)
	require.NotNil(t, txn.CreditAccount)
	assert.Equal(t, "y", txn.CreditAccount.Name)
	assert.Equal(t, fmt.Sprintf("/api/v1/transfers/%s", txn.ID), rec.Header().Get("Location"))

	// Balances moved exactly once.
	rec = env.do(t, "GET", "/api/v1/accounts/"+x.ID.String(), nil)
	assert.True(t, decode[domain.Account](t, rec).Balance.Equal(decimal.RequireFromString("70")))
	rec = env.do(t, "GET", "/api/v1/accounts/"+y.ID.String(), nil)
	assert.True(t, decode[domain.Account](t, rec).Balance.Equal(decimal.RequireFromString("80")))
}

func TestCreateTransfer_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	x := env.seed(t, "x", "100")
	y := env.seed(t, "y", "50")

	base := func() map[string]interface{} {
		return map[string]interface{}{
			"debitAccountId":  x.ID,
			"creditAccountId": y.ID,
			"amount":          "10",
			"description":     "ok",
		}
	}

	overdraw := base()
	overdraw["amount"] = "1000"
	rec := env.do(t, "POST", "/api/v1/transfers", overdraw)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	negative := base()
	negative["amount"] = "-1"
	rec = env.do(t, "POST", "/api/v1/transfers", negative)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	self := base()
	self["creditAccountId"] = x.ID
	rec = env.do(t, "POST", "/api/v1/transfers", self)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	missing := base()
	missing["debitAccountId"] = uuid.NewString()
	rec = env.do(t, "POST", "/api/v1/transfers", missing)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	blank := base()
	blank["description"] = ""
	rec = env.do(t, "POST", "/api/v1/transfers", blank)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest("POST", "/api/v1/transfers", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateTransfer_DuplicateID(t *testing.T) {
	env := newTestEnv(t)
	x := env.seed(t, "x", "100")
	y := env.seed(t, "y", "50")

	body := map[string]interface{}{
		"transactionId":   uuid.NewString(),
		"debitAccountId":  x.ID,
		"creditAccountId": y.ID,
		"amount":          "10",
		"description":     "once",
	}

	rec := env.do(t, "POST", "/api/v1/transfers", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, "POST", "/api/v1/transfers", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetAccountTransactions(t *testing.T) {
	env := newTestEnv(t)
	x := env.seed(t, "x", "100")
	y := env.seed(t, "y", "50")

	for i := 0; i < 3; i++ {
		rec := env.do(t, "POST", "/api/v1/transfers", map[string]interface{}{
			"debitAccountId":  x.ID,
			"creditAccountId": y.ID,
			"amount":          "5",
			"description":     fmt.Sprintf("payment %d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, "GET", "/api/v1/accounts/"+x.ID.String()+"/transactions?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[[]domain.Transaction](t, rec)
	require.Len(t, page, 2)
	assert.Equal(t, "payment 2", page[0].Description)
	assert.Equal(t, "payment 1", page[1].Description)

	rec = env.do(t, "GET", "/api/v1/accounts/"+uuid.NewString()+"/transactions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTransferAndRecent(t *testing.T) {
	env := newTestEnv(t)
	x := env.seed(t, "x", "100")
	y := env.seed(t, "y", "50")

	rec := env.do(t, "POST", "/api/v1/transfers", map[string]interface{}{
		"debitAccountId":  x.ID,
		"creditAccountId": y.ID,
		"amount":          "5",
		"description":     "lookup",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[domain.Transaction](t, rec)

	rec = env.do(t, "GET", "/api/v1/transfers/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[domain.Transaction](t, rec).ID)

	rec = env.do(t, "GET", "/api/v1/transfers/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "GET", "/api/v1/transfers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recent := decode[[]domain.Transaction](t, rec)
	require.Len(t, recent, 1)
	assert.Equal(t, created.ID, recent[0].ID)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}
