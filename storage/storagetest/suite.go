// Package storagetest holds the behaviour every storage.Store backend must
// share. Backends run it from their own tests:
//
//	suite.Run(t, &storagetest.Suite{NewStore: func(t *testing.T) storage.Store { ... }})
package storagetest

import (
	"context"
	"testing"
	"time"

	"deposito-ledger/model"
	"deposito-ledger/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Suite is a conformance suite for storage.Store implementations.
type Suite struct {
	suite.Suite

	// NewStore returns an empty store. It is called before every test.
	NewStore func(t *testing.T) storage.Store

	store storage.Store
	ctx   context.Context
}

// Timestamps are truncated to microseconds, the resolution SQL backends keep.
var base = time.Date(2024, time.January, 1, 9, 30, 0, 0, time.UTC)

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
}

func (s *Suite) customer(name string, createdAt time.Time) model.Customer {
	c := model.Customer{ID: uuid.NewString(), Name: name, CreatedAt: createdAt, UpdatedAt: createdAt}
	s.Require().NoError(s.store.CreateCustomer(s.ctx, c))
	return c
}

func (s *Suite) depositoType(name, rate string) model.DepositoType {
	d := model.DepositoType{
		ID:           uuid.NewString(),
		Name:         name,
		YearlyReturn: decimal.RequireFromString(rate),
		CreatedAt:    base,
		UpdatedAt:    base,
	}
	s.Require().NoError(s.store.CreateDepositoType(s.ctx, d))
	return d
}

func (s *Suite) account() model.Account {
	c := s.customer("Account Holder", base)
	d := s.depositoType("Deposito Silver", "0.05")
	a := model.Account{
		ID:             uuid.NewString(),
		CustomerID:     c.ID,
		DepositoTypeID: d.ID,
		Balance:        decimal.Zero,
		CreatedAt:      base,
		UpdatedAt:      base,
	}
	s.Require().NoError(s.store.CreateAccount(s.ctx, a))
	return a
}

func (s *Suite) settle(accountID string, typ model.TransactionType, amount, before, after string, date, createdAt time.Time) model.Transaction {
	tx := model.Transaction{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Type:          typ,
		Amount:        decimal.RequireFromString(amount),
		Date:          date,
		BalanceBefore: decimal.RequireFromString(before),
		BalanceAfter:  decimal.RequireFromString(after),
		CreatedAt:     createdAt,
	}
	s.Require().NoError(s.store.ApplySettlement(s.ctx, tx))
	return tx
}

func (s *Suite) TestCustomerCRUD() {
	later := s.customer("Jane Smith", base.Add(time.Hour))
	first := s.customer("John Doe", base)

	got, err := s.store.GetCustomer(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal("John Doe", got.Name)
	s.True(first.CreatedAt.Equal(got.CreatedAt))

	s.ErrorIs(s.store.CreateCustomer(s.ctx, first), storage.ErrAlreadyExists)

	list, err := s.store.ListCustomers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID, "customers are listed oldest first")
	s.Equal(later.ID, list[1].ID)

	renamed := model.Customer{ID: first.ID, Name: "Johnny Doe", UpdatedAt: base.Add(2 * time.Hour)}
	s.Require().NoError(s.store.UpdateCustomer(s.ctx, renamed))
	got, err = s.store.GetCustomer(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal("Johnny Doe", got.Name)
	s.True(first.CreatedAt.Equal(got.CreatedAt), "update keeps created_at")
	s.True(renamed.UpdatedAt.Equal(got.UpdatedAt))

	s.ErrorIs(s.store.UpdateCustomer(s.ctx, model.Customer{ID: "missing", Name: "x"}), storage.ErrNotFound)

	s.Require().NoError(s.store.DeleteCustomer(s.ctx, first.ID))
	_, err = s.store.GetCustomer(s.ctx, first.ID)
	s.ErrorIs(err, storage.ErrNotFound)
	s.ErrorIs(s.store.DeleteCustomer(s.ctx, first.ID), storage.ErrNotFound)
}

func (s *Suite) TestDepositoTypeCRUD() {
	d := s.depositoType("Deposito Gold", "0.07")

	got, err := s.store.GetDepositoType(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("Deposito Gold", got.Name)
	s.True(d.YearlyReturn.Equal(got.YearlyReturn), "yearly return %s", got.YearlyReturn)

	s.ErrorIs(s.store.CreateDepositoType(s.ctx, d), storage.ErrAlreadyExists)

	updated := model.DepositoType{ID: d.ID, Name: "Deposito Platinum", YearlyReturn: decimal.RequireFromString("0.085"), UpdatedAt: base.Add(time.Hour)}
	s.Require().NoError(s.store.UpdateDepositoType(s.ctx, updated))
	got, err = s.store.GetDepositoType(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("Deposito Platinum", got.Name)
	s.True(updated.YearlyReturn.Equal(got.YearlyReturn))
	s.True(d.CreatedAt.Equal(got.CreatedAt))

	list, err := s.store.ListDepositoTypes(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)

	s.ErrorIs(s.store.UpdateDepositoType(s.ctx, model.DepositoType{ID: "missing"}), storage.ErrNotFound)
	s.Require().NoError(s.store.DeleteDepositoType(s.ctx, d.ID))
	_, err = s.store.GetDepositoType(s.ctx, d.ID)
	s.ErrorIs(err, storage.ErrNotFound)
	s.ErrorIs(s.store.DeleteDepositoType(s.ctx, d.ID), storage.ErrNotFound)
}

func (s *Suite) TestCreateAccountRules() {
	c := s.customer("John Doe", base)
	silver := s.depositoType("Deposito Silver", "0.05")
	gold := s.depositoType("Deposito Gold", "0.07")

	newAccount := func(customerID, typeID string) model.Account {
		return model.Account{ID: uuid.NewString(), CustomerID: customerID, DepositoTypeID: typeID, Balance: decimal.Zero, CreatedAt: base, UpdatedAt: base}
	}

	first := newAccount(c.ID, silver.ID)
	s.Require().NoError(s.store.CreateAccount(s.ctx, first))
	s.Require().NoError(s.store.CreateAccount(s.ctx, newAccount(c.ID, gold.ID)))

	s.ErrorIs(s.store.CreateAccount(s.ctx, newAccount(c.ID, silver.ID)), storage.ErrDuplicateAccount)
	s.ErrorIs(s.store.CreateAccount(s.ctx, newAccount("missing", silver.ID)), storage.ErrNotFound)
	s.ErrorIs(s.store.CreateAccount(s.ctx, newAccount(c.ID, "missing")), storage.ErrNotFound)

	got, err := s.store.GetAccount(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, got.CustomerID)
	s.Equal(silver.ID, got.DepositoTypeID)
	s.True(got.Balance.IsZero())

	other := s.customer("Jane Smith", base)
	s.Require().NoError(s.store.CreateAccount(s.ctx, newAccount(other.ID, silver.ID)))

	mine, err := s.store.ListAccounts(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(mine, 2)
	all, err := s.store.ListAccounts(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	_, err = s.store.GetAccount(s.ctx, "missing")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *Suite) TestReferencedRowsCannotBeDeleted() {
	acc := s.account()

	s.ErrorIs(s.store.DeleteCustomer(s.ctx, acc.CustomerID), storage.ErrInUse)
	s.ErrorIs(s.store.DeleteDepositoType(s.ctx, acc.DepositoTypeID), storage.ErrInUse)

	s.Require().NoError(s.store.DeleteAccount(s.ctx, acc.ID))
	s.NoError(s.store.DeleteCustomer(s.ctx, acc.CustomerID))
	s.NoError(s.store.DeleteDepositoType(s.ctx, acc.DepositoTypeID))
}

func (s *Suite) TestApplySettlement() {
	acc := s.account()
	jan := base
	mar := base.AddDate(0, 2, 0)

	s.settle(acc.ID, model.TransactionTypeDeposit, "1000000", "0", "1000000", jan, base)
	s.settle(acc.ID, model.TransactionTypeDeposit, "500000", "1000000", "1500000", mar, base.Add(time.Minute))

	got, err := s.store.GetAccount(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(1_500_000).Equal(got.Balance), "balance %s", got.Balance)

	txs, err := s.store.ListTransactions(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
	s.True(mar.Equal(txs[0].Date), "newest date first")
	s.True(txs[0].BalanceAfter.Equal(got.Balance), "balance matches latest balance_after")
	s.Nil(txs[0].InterestEarned)
	s.Nil(txs[0].MonthsHeld)
}

func (s *Suite) TestApplySettlement_WithdrawalFields() {
	acc := s.account()
	s.settle(acc.ID, model.TransactionTypeDeposit, "1000000", "0", "1000000", base, base)

	interest := decimal.RequireFromString("5833.3333333333333333")
	months := 1
	withdrawal := model.Transaction{
		ID:             uuid.NewString(),
		AccountID:      acc.ID,
		Type:           model.TransactionTypeWithdrawal,
		Amount:         decimal.NewFromInt(100_000),
		Date:           base.AddDate(0, 1, 0),
		BalanceBefore:  decimal.NewFromInt(1_000_000),
		BalanceAfter:   decimal.RequireFromString("905833.3333333333333333"),
		InterestEarned: &interest,
		MonthsHeld:     &months,
		CreatedAt:      base.Add(time.Hour),
	}
	s.Require().NoError(s.store.ApplySettlement(s.ctx, withdrawal))

	txs, err := s.store.ListTransactions(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
	got := txs[0]
	s.Equal(model.TransactionTypeWithdrawal, got.Type)
	s.Require().NotNil(got.InterestEarned)
	s.Require().NotNil(got.MonthsHeld)
	s.True(interest.Equal(*got.InterestEarned), "interest %s", got.InterestEarned)
	s.Equal(1, *got.MonthsHeld)
	s.True(withdrawal.BalanceAfter.Equal(got.BalanceAfter), "balance_after %s", got.BalanceAfter)

	acct, err := s.store.GetAccount(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.True(withdrawal.BalanceAfter.Equal(acct.Balance), "full precision balance %s", acct.Balance)
}

func (s *Suite) TestApplySettlement_StaleBalance() {
	acc := s.account()
	s.settle(acc.ID, model.TransactionTypeDeposit, "100", "0", "100", base, base)

	stale := model.Transaction{
		ID:            uuid.NewString(),
		AccountID:     acc.ID,
		Type:          model.TransactionTypeDeposit,
		Amount:        decimal.NewFromInt(50),
		Date:          base,
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.NewFromInt(50),
		CreatedAt:     base,
	}
	s.ErrorIs(s.store.ApplySettlement(s.ctx, stale), storage.ErrBalanceConflict)

	got, err := s.store.GetAccount(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(100).Equal(got.Balance))
	txs, err := s.store.ListTransactions(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.Len(txs, 1, "a rejected settlement leaves no ledger entry")

	stale.AccountID = "missing"
	s.ErrorIs(s.store.ApplySettlement(s.ctx, stale), storage.ErrNotFound)
}

func (s *Suite) TestFindLatestDeposit() {
	acc := s.account()

	_, err := s.store.FindLatestDeposit(s.ctx, acc.ID)
	s.ErrorIs(err, storage.ErrNotFound)

	// Booked out of date order: the later-dated deposit is created first.
	april := base.AddDate(0, 3, 0)
	s.settle(acc.ID, model.TransactionTypeDeposit, "100", "0", "100", april, base)
	s.settle(acc.ID, model.TransactionTypeDeposit, "100", "100", "200", base, base.Add(time.Minute))
	s.settle(acc.ID, model.TransactionTypeWithdrawal, "50", "200", "150", april.AddDate(0, 1, 0), base.Add(2*time.Minute))

	latest, err := s.store.FindLatestDeposit(s.ctx, acc.ID)
	s.Require().NoError(err)
	s.Equal(model.TransactionTypeDeposit, latest.Type)
	s.True(april.Equal(latest.Date), "latest by date, got %s", latest.Date)
}

func (s *Suite) TestDeleteAccount() {
	acc := s.account()
	s.settle(acc.ID, model.TransactionTypeDeposit, "100", "0", "100", base, base)

	s.ErrorIs(s.store.DeleteAccount(s.ctx, acc.ID), storage.ErrAccountHasBalance)

	s.settle(acc.ID, model.TransactionTypeWithdrawal, "100", "100", "0", base.AddDate(0, 0, 1), base.Add(time.Minute))
	s.Require().NoError(s.store.DeleteAccount(s.ctx, acc.ID))

	_, err := s.store.GetAccount(s.ctx, acc.ID)
	s.ErrorIs(err, storage.ErrNotFound)
	_, err = s.store.ListTransactions(s.ctx, acc.ID)
	s.ErrorIs(err, storage.ErrNotFound)
	s.ErrorIs(s.store.DeleteAccount(s.ctx, acc.ID), storage.ErrNotFound)
}

func (s *Suite) TestSeedIsRepeatable() {
	s.Require().NoError(storage.Seed(s.ctx, s.store))
	s.Require().NoError(storage.Seed(s.ctx, s.store))

	types, err := s.store.ListDepositoTypes(s.ctx)
	s.Require().NoError(err)
	s.Len(types, len(storage.DemoDepositoTypes))
	customers, err := s.store.ListCustomers(s.ctx)
	s.Require().NoError(err)
	s.Len(customers, len(storage.DemoCustomers))

	gold, err := s.store.GetDepositoType(s.ctx, "deposito-3")
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("0.07").Equal(gold.YearlyReturn))
}
