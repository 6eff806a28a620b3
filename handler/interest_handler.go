package handler

import (
	"log/slog"
	"net/http"

	"deposito-ledger/interest"
	"deposito-ledger/model"
)

// CalculateInterest runs the calculator on ad-hoc inputs.
//
// Method: POST
// Path: /interest/calculate
func CalculateInterest(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[model.InterestRequest](w, r)
	if !ok {
		return
	}
	if req.StartingBalance.IsNegative() {
		writeMessage(w, http.StatusBadRequest, "starting_balance must not be negative")
		return
	}
	if !validRate(req.YearlyReturn) {
		writeMessage(w, http.StatusBadRequest, "yearly_return must be between 0 and 1")
		return
	}
	deposit, err := parseDate(req.DepositDate)
	if err != nil {
		writeError(w, slog.Default(), err)
		return
	}
	withdrawal, err := parseDate(req.WithdrawalDate)
	if err != nil {
		writeError(w, slog.Default(), err)
		return
	}

	writeJSON(w, http.StatusOK, interest.Calculate(req.StartingBalance, deposit, withdrawal, req.YearlyReturn))
}
