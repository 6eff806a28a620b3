package gormstore

import (
	"time"

	"deposito-ledger/model"

	"github.com/shopspring/decimal"
)

// Row types use the same table and column names as the postgres backend.

type customerRow struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Name      string `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (customerRow) TableName() string { return "customers" }

type depositoTypeRow struct {
	ID           string          `gorm:"primaryKey;type:varchar(64)"`
	Name         string          `gorm:"type:varchar(100);not null"`
	YearlyReturn decimal.Decimal `gorm:"type:decimal(38,18);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (depositoTypeRow) TableName() string { return "deposito_types" }

type accountRow struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)"`
	CustomerID     string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_accounts_customer_deposito"`
	DepositoTypeID string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_accounts_customer_deposito"`
	Balance        decimal.Decimal `gorm:"type:decimal(38,18);not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (accountRow) TableName() string { return "accounts" }

type transactionRow struct {
	ID             string              `gorm:"primaryKey;type:varchar(64)"`
	AccountID      string              `gorm:"type:varchar(64);not null;index:idx_transactions_account_date"`
	Type           string              `gorm:"type:varchar(16);not null"`
	Amount         decimal.Decimal     `gorm:"type:decimal(38,18);not null"`
	Date           time.Time           `gorm:"not null;index:idx_transactions_account_date"`
	BalanceBefore  decimal.Decimal     `gorm:"type:decimal(38,18);not null"`
	BalanceAfter   decimal.Decimal     `gorm:"type:decimal(38,18);not null"`
	InterestEarned decimal.NullDecimal `gorm:"type:decimal(38,18)"`
	MonthsHeld     *int
	CreatedAt      time.Time
}

func (transactionRow) TableName() string { return "transactions" }

func customerFromRow(r customerRow) model.Customer {
	return model.Customer{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func depositoTypeFromRow(r depositoTypeRow) model.DepositoType {
	return model.DepositoType{ID: r.ID, Name: r.Name, YearlyReturn: r.YearlyReturn, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func accountFromRow(r accountRow) model.Account {
	return model.Account{
		ID:             r.ID,
		CustomerID:     r.CustomerID,
		DepositoTypeID: r.DepositoTypeID,
		Balance:        r.Balance,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func transactionToRow(t model.Transaction) transactionRow {
	row := transactionRow{
		ID:            t.ID,
		AccountID:     t.AccountID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Date:          t.Date,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		MonthsHeld:    t.MonthsHeld,
		CreatedAt:     t.CreatedAt,
	}
	if t.InterestEarned != nil {
		row.InterestEarned = decimal.NewNullDecimal(*t.InterestEarned)
	}
	return row
}

func transactionFromRow(r transactionRow) model.Transaction {
	t := model.Transaction{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Type:          model.TransactionType(r.Type),
		Amount:        r.Amount,
		Date:          r.Date.UTC(),
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		MonthsHeld:    r.MonthsHeld,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.InterestEarned.Valid {
		interest := r.InterestEarned.Decimal
		t.InterestEarned = &interest
	}
	return t
}
