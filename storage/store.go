package storage

import (
	"context"
	"errors"

	"deposito-ledger/model"
)

// Custom errors for the storage layer.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrDuplicateAccount  = errors.New("customer already has an account with this deposito type")
	ErrInUse             = errors.New("resource is still referenced by an account")
	ErrAccountHasBalance = errors.New("cannot delete account with positive balance, withdraw all funds first")
	ErrBalanceConflict   = errors.New("account balance changed concurrently")
)

// Store is the ledger store. Every backend (memory, postgres, gorm) implements
// it; which one runs is decided by configuration.
type Store interface {
	CreateCustomer(ctx context.Context, c model.Customer) error
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	UpdateCustomer(ctx context.Context, c model.Customer) error
	DeleteCustomer(ctx context.Context, id string) error

	CreateDepositoType(ctx context.Context, d model.DepositoType) error
	GetDepositoType(ctx context.Context, id string) (*model.DepositoType, error)
	ListDepositoTypes(ctx context.Context) ([]model.DepositoType, error)
	UpdateDepositoType(ctx context.Context, d model.DepositoType) error
	DeleteDepositoType(ctx context.Context, id string) error

	// CreateAccount fails with ErrDuplicateAccount when the customer already
	// holds an account of the same deposito type, and with ErrNotFound when the
	// customer or the deposito type does not exist.
	CreateAccount(ctx context.Context, a model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	// ListAccounts returns every account, or only the customer's when
	// customerID is not empty.
	ListAccounts(ctx context.Context, customerID string) ([]model.Account, error)
	// DeleteAccount removes the account and its transactions. Accounts with a
	// positive balance are rejected with ErrAccountHasBalance.
	DeleteAccount(ctx context.Context, id string) error

	// ListTransactions returns the account's ledger, newest date first.
	ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error)
	// FindLatestDeposit returns the DEPOSIT with the latest date, or
	// ErrNotFound when the account has none.
	FindLatestDeposit(ctx context.Context, accountID string) (*model.Transaction, error)
	// ApplySettlement appends tx and sets the account balance to
	// tx.BalanceAfter as one atomic unit. It fails with ErrBalanceConflict,
	// changing nothing, if the stored balance is not tx.BalanceBefore.
	ApplySettlement(ctx context.Context, tx model.Transaction) error

	Close() error
}
