package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deposito-ledger/interest"
	"deposito-ledger/model"
	"deposito-ledger/settlement"
	"deposito-ledger/storage"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// MockSettler provides a mock implementation of Settler for testing.
type MockSettler struct {
	OpenAccountFunc      func(ctx context.Context, customerID, depositoTypeID string, initialBalance decimal.Decimal) (*model.Account, error)
	SettleDepositFunc    func(ctx context.Context, accountID string, amount decimal.Decimal, date time.Time) (*model.Transaction, error)
	SettleWithdrawalFunc func(ctx context.Context, accountID string, amount decimal.Decimal, date time.Time) (*model.Transaction, error)
	QuoteWithdrawalFunc  func(ctx context.Context, accountID string, date time.Time) (interest.Calculation, error)
}

func (m *MockSettler) OpenAccount(ctx context.Context, customerID, depositoTypeID string, initialBalance decimal.Decimal) (*model.Account, error) {
	return m.OpenAccountFunc(ctx, customerID, depositoTypeID, initialBalance)
}

func (m *MockSettler) SettleDeposit(ctx context.Context, accountID string, amount decimal.Decimal, date time.Time) (*model.Transaction, error) {
	return m.SettleDepositFunc(ctx, accountID, amount, date)
}

func (m *MockSettler) SettleWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, date time.Time) (*model.Transaction, error) {
	return m.SettleWithdrawalFunc(ctx, accountID, amount, date)
}

func (m *MockSettler) QuoteWithdrawal(ctx context.Context, accountID string, date time.Time) (interest.Calculation, error) {
	return m.QuoteWithdrawalFunc(ctx, accountID, date)
}

// newTestRouter returns the full router over a seeded in-memory ledger.
func newTestRouter(t *testing.T) (*mux.Router, storage.Store) {
	t.Helper()
	store, err := storage.NewMemoryStore(nil)
	require.NoError(t, err)
	require.NoError(t, storage.Seed(context.Background(), store))
	return NewRouter(store, settlement.NewService(store, discard), discard), store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func errorText(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[errorResponse](t, rr).Error
}
