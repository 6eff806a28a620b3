package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package model defines the data structures used by the savings ledger.

// Money and rates are "github.com/shopspring/decimal" values, never float64.
// Interest is computed as balance × months × rate / 12 and binary floating point
// cannot represent most of those intermediate values exactly; the drift would
// leak straight into balance_after and break the ledger invariants.

// TransactionType is the kind of a ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal
}

// Customer owns zero or more accounts.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DepositoType is a named interest-rate tier such as "Deposito Gold".
// YearlyReturn is a fraction of principal: 0.05 means 5% per year.
type DepositoType struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	YearlyReturn decimal.Decimal `json:"yearly_return"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Account is a savings account. Balance only changes through settlements.
type Account struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	DepositoTypeID string          `json:"deposito_type_id"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Transaction is an immutable ledger entry. InterestEarned and MonthsHeld are
// only set on withdrawals.
type Transaction struct {
	ID             string           `json:"id"`
	AccountID      string           `json:"account_id"`
	Type           TransactionType  `json:"type"`
	Amount         decimal.Decimal  `json:"amount"`
	Date           time.Time        `json:"date"`
	BalanceBefore  decimal.Decimal  `json:"balance_before"`
	BalanceAfter   decimal.Decimal  `json:"balance_after"`
	InterestEarned *decimal.Decimal `json:"interest_earned,omitempty"`
	MonthsHeld     *int             `json:"months_held,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// CustomerRequest is the JSON body for creating or renaming a customer.
type CustomerRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// DepositoTypeRequest is the JSON body for creating or updating a deposito type.
type DepositoTypeRequest struct {
	Name         string          `json:"name" validate:"required,max=100"`
	YearlyReturn decimal.Decimal `json:"yearly_return"`
}

// CreateAccountRequest is the JSON body for opening an account.
type CreateAccountRequest struct {
	CustomerID     string          `json:"customer_id" validate:"required"`
	DepositoTypeID string          `json:"deposito_type_id" validate:"required"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// TransactionRequest is the JSON body for submitting a deposit or a withdrawal.
// Date uses the YYYY-MM-DD layout; an empty date means today.
type TransactionRequest struct {
	AccountID string          `json:"account_id" validate:"required"`
	Type      TransactionType `json:"type" validate:"required,oneof=DEPOSIT WITHDRAWAL"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// InterestRequest is the JSON body for the stand-alone interest calculator.
type InterestRequest struct {
	StartingBalance decimal.Decimal `json:"starting_balance"`
	DepositDate     string          `json:"deposit_date" validate:"required"`
	WithdrawalDate  string          `json:"withdrawal_date" validate:"required"`
	YearlyReturn    decimal.Decimal `json:"yearly_return"`
}

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"
