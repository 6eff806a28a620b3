package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deposito-ledger/model"

	"github.com/shopspring/decimal"
)

var seedTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DemoDepositoTypes are the rate tiers loaded by Seed.
var DemoDepositoTypes = []model.DepositoType{
	{ID: "deposito-1", Name: "Deposito Bronze", YearlyReturn: decimal.RequireFromString("0.03"), CreatedAt: seedTime, UpdatedAt: seedTime},
	{ID: "deposito-2", Name: "Deposito Silver", YearlyReturn: decimal.RequireFromString("0.05"), CreatedAt: seedTime, UpdatedAt: seedTime},
	{ID: "deposito-3", Name: "Deposito Gold", YearlyReturn: decimal.RequireFromString("0.07"), CreatedAt: seedTime, UpdatedAt: seedTime},
}

// DemoCustomers are the customers loaded by Seed.
var DemoCustomers = []model.Customer{
	{ID: "customer-1", Name: "John Doe", CreatedAt: time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), UpdatedAt: time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)},
	{ID: "customer-2", Name: "Jane Smith", CreatedAt: time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC), UpdatedAt: time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)},
	{ID: "customer-3", Name: "Robert Johnson", CreatedAt: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), UpdatedAt: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)},
}

// Seed loads the demo deposito types and customers into store. It is meant to
// be called once at startup; rows that already exist are left untouched, so
// running it again is harmless.
func Seed(ctx context.Context, store Store) error {
	for _, d := range DemoDepositoTypes {
		err := store.CreateDepositoType(ctx, d)
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("seed deposito type %s: %w", d.ID, err)
		}
	}
	for _, c := range DemoCustomers {
		err := store.CreateCustomer(ctx, c)
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	return nil
}
