package handler

import (
	"log/slog"
	"net/http"

	"deposito-ledger/model"
)

// TransactionHandler holds dependencies for transaction-related handlers.
type TransactionHandler struct {
	settler Settler
	logger  *slog.Logger
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(settler Settler, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{settler: settler, logger: logger}
}

// Create settles a deposit or a withdrawal and returns the ledger entry.
//
// Method: POST
// Path: /transactions
// Success: 201 Created
// Error: 400 Bad Request (invalid JSON, unknown type, non-positive amount, bad date)
// Error: 404 Not Found (unknown account, or a withdrawal with no prior deposit)
// Error: 422 Unprocessable Entity (withdrawal above principal plus interest)
// Error: 500 Internal Server Error (for storage errors)
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[model.TransactionRequest](w, r)
	if !ok {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var tx *model.Transaction
	switch req.Type {
	case model.TransactionTypeDeposit:
		tx, err = h.settler.SettleDeposit(r.Context(), req.AccountID, req.Amount, date)
	case model.TransactionTypeWithdrawal:
		tx, err = h.settler.SettleWithdrawal(r.Context(), req.AccountID, req.Amount, date)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}
