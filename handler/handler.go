// Package handler exposes the ledger over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"deposito-ledger/interest"
	"deposito-ledger/model"
	"deposito-ledger/settlement"
	"deposito-ledger/storage"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Settler is the settlement API the handlers drive. *settlement.Service
// implements it.
type Settler interface {
	OpenAccount(ctx context.Context, customerID, depositoTypeID string, initialBalance decimal.Decimal) (*model.Account, error)
	SettleDeposit(ctx context.Context, accountID string, amount decimal.Decimal, depositDate time.Time) (*model.Transaction, error)
	SettleWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, withdrawalDate time.Time) (*model.Transaction, error)
	QuoteWithdrawal(ctx context.Context, accountID string, withdrawalDate time.Time) (interest.Calculation, error)
}

var validate = validator.New()

var one = decimal.NewFromInt(1)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error writing JSON response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps err onto a status code. Anything unrecognised is logged
// and reported as a 500 without leaking its text.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, settlement.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settlement.ErrInsufficientFunds):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrDuplicateAccount),
		errors.Is(err, storage.ErrAlreadyExists),
		errors.Is(err, storage.ErrInUse),
		errors.Is(err, storage.ErrAccountHasBalance),
		errors.Is(err, storage.ErrBalanceConflict):
		writeMessage(w, http.StatusConflict, conflictMessage(err))
	default:
		logger.Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// conflictMessage returns the sentinel's text, which is written for end users,
// rather than the wrapped chain.
func conflictMessage(err error) string {
	for _, sentinel := range []error{
		storage.ErrDuplicateAccount,
		storage.ErrInUse,
		storage.ErrAccountHasBalance,
		storage.ErrBalanceConflict,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// decode reads a JSON body into a T and runs its validate tags.
func decode[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var input T
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := validate.Struct(input); err != nil {
		writeMessage(w, http.StatusBadRequest, validationMessage(err))
		return nil, false
	}
	return &input, true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "validation failed"
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

// parseDate reads a YYYY-MM-DD date. An empty string means today (UTC).
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, &settlement.ValidationError{Message: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return d, nil
}

func validRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && !rate.GreaterThan(one)
}
