package handler

import (
	"log/slog"
	"net/http"

	"deposito-ledger/model"
	"deposito-ledger/storage"

	"github.com/gorilla/mux"
)

// AccountHandler holds dependencies for account-related handlers.
type AccountHandler struct {
	store   storage.Store
	settler Settler
	logger  *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(store storage.Store, settler Settler, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{store: store, settler: settler, logger: logger}
}

// Create opens an account. A positive initial_balance is booked as the
// account's first deposit.
//
// Method: POST
// Path: /accounts
// Success: 201 Created
// Error: 400 Bad Request (invalid JSON, missing ids, negative balance)
// Error: 404 Not Found (unknown customer or deposito type)
// Error: 409 Conflict (customer already has this deposito type)
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[model.CreateAccountRequest](w, r)
	if !ok {
		return
	}
	acc, err := h.settler.OpenAccount(r.Context(), req.CustomerID, req.DepositoTypeID, req.InitialBalance)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

// List returns all accounts, or one customer's with ?customer_id=.
//
// Method: GET
// Path: /accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// Get returns one account and its current balance.
//
// Method: GET
// Path: /accounts/{id}
// Error: 404 Not Found (if account does not exist)
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.store.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// Delete closes an account and drops its ledger. The balance must be zero.
//
// Method: DELETE
// Path: /accounts/{id}
// Success: 204 No Content
// Error: 409 Conflict (positive balance)
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("account closed", "account_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Transactions returns the account's ledger, newest date first.
//
// Method: GET
// Path: /accounts/{id}/transactions
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.ListTransactions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// Interest previews the accrual a withdrawal on ?date= (default today) would
// see. Nothing is written.
//
// Method: GET
// Path: /accounts/{id}/interest
func (h *AccountHandler) Interest(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	calc, err := h.settler.QuoteWithdrawal(r.Context(), mux.Vars(r)["id"], date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, calc)
}
