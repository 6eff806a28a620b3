package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"deposito-ledger/model"
	"deposito-ledger/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan1 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	mar1 = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	apr1 = time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
)

// spyLedger counts the lookups only a withdrawal needs and can fail writes.
type spyLedger struct {
	storage.Store

	mu                sync.Mutex
	depositoTypeReads int
	latestDepositHits int
	applyErr          error
}

func (s *spyLedger) GetDepositoType(ctx context.Context, id string) (*model.DepositoType, error) {
	s.mu.Lock()
	s.depositoTypeReads++
	s.mu.Unlock()
	return s.Store.GetDepositoType(ctx, id)
}

func (s *spyLedger) FindLatestDeposit(ctx context.Context, accountID string) (*model.Transaction, error) {
	s.mu.Lock()
	s.latestDepositHits++
	s.mu.Unlock()
	return s.Store.FindLatestDeposit(ctx, accountID)
}

func (s *spyLedger) ApplySettlement(ctx context.Context, tx model.Transaction) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	return s.Store.ApplySettlement(ctx, tx)
}

type fixture struct {
	svc    *Service
	ledger *spyLedger
	acc    model.Account
}

// newFixture returns a service over a seeded memory store holding one empty
// account on a 6% deposito type. The clock and ids are deterministic.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mem, err := storage.NewMemoryStore(nil)
	require.NoError(t, err)
	require.NoError(t, storage.Seed(ctx, mem))
	require.NoError(t, mem.CreateDepositoType(ctx, model.DepositoType{
		ID: "deposito-6", Name: "Deposito Six", YearlyReturn: decimal.RequireFromString("0.06"), CreatedAt: jan1, UpdatedAt: jan1,
	}))
	acc := model.Account{ID: "acc-1", CustomerID: "customer-1", DepositoTypeID: "deposito-6", Balance: decimal.Zero, CreatedAt: jan1, UpdatedAt: jan1}
	require.NoError(t, mem.CreateAccount(ctx, acc))

	ledger := &spyLedger{Store: mem}
	svc := NewService(ledger, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var seq int
	var mu sync.Mutex
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("tx-%04d", seq)
	}
	svc.now = func() time.Time { return jan1 }
	return &fixture{svc: svc, ledger: ledger, acc: acc}
}

func TestSettleWithdrawal_AccruesInterestSinceLatestDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Arrange
	_, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_000_000), jan1)
	require.NoError(t, err)

	// Act
	tx, err := f.svc.SettleWithdrawal(ctx, f.acc.ID, decimal.NewFromInt(20_000), apr1)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, model.TransactionTypeWithdrawal, tx.Type)
	require.NotNil(t, tx.MonthsHeld)
	require.NotNil(t, tx.InterestEarned)
	assert.Equal(t, 3, *tx.MonthsHeld)
	assert.True(t, decimal.NewFromInt(15_000).Equal(*tx.InterestEarned), "interest %s", tx.InterestEarned)
	assert.True(t, decimal.NewFromInt(1_000_000).Equal(tx.BalanceBefore))
	assert.True(t, decimal.NewFromInt(995_000).Equal(tx.BalanceAfter), "balance_after %s", tx.BalanceAfter)

	acc, err := f.ledger.GetAccount(ctx, f.acc.ID)
	require.NoError(t, err)
	assert.True(t, tx.BalanceAfter.Equal(acc.Balance))
}

func TestSettleWithdrawal_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_000_000), jan1)
	require.NoError(t, err)

	_, err = f.svc.SettleWithdrawal(ctx, f.acc.ID, decimal.NewFromInt(1_020_000), apr1)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, decimal.NewFromInt(1_015_000).Equal(insufficient.Available), "available %s", insufficient.Available)
	assert.Equal(t, "insufficient balance. Available: Rp 1015000 (including interest)", err.Error())

	// Nothing was written.
	txs, err := f.ledger.ListTransactions(ctx, f.acc.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	acc, err := f.ledger.GetAccount(ctx, f.acc.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1_000_000).Equal(acc.Balance))
}

func TestSettleWithdrawal_WholeBalanceWithInterest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_000_000), jan1)
	require.NoError(t, err)

	tx, err := f.svc.SettleWithdrawal(ctx, f.acc.ID, decimal.NewFromInt(1_015_000), apr1)

	require.NoError(t, err)
	assert.True(t, tx.BalanceAfter.IsZero(), "balance_after %s", tx.BalanceAfter)
}

func TestSettleDeposit_DoesNotAccrue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_015_000), jan1)
	require.NoError(t, err)

	tx, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(500_000), apr1)

	require.NoError(t, err)
	assert.Equal(t, model.TransactionTypeDeposit, tx.Type)
	assert.True(t, decimal.NewFromInt(1_015_000).Equal(tx.BalanceBefore))
	assert.True(t, decimal.NewFromInt(1_515_000).Equal(tx.BalanceAfter))
	assert.Nil(t, tx.InterestEarned)
	assert.Nil(t, tx.MonthsHeld)
	assert.Zero(t, f.ledger.depositoTypeReads, "deposits never look up the rate")
	assert.Zero(t, f.ledger.latestDepositHits, "deposits never look up an anchor")
}

func TestSettleWithdrawal_NoDeposit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SettleWithdrawal(context.Background(), f.acc.ID, decimal.NewFromInt(100), apr1)

	require.Error(t, err)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "no deposit found for this account", err.Error())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSettleWithdrawal_AnchorsOnLatestDepositDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Arrange: the March deposit is booked before a back-dated January one.
	_, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_000_000), mar1)
	require.NoError(t, err)
	_, err = f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_000_000), jan1)
	require.NoError(t, err)

	// Act
	calc, err := f.svc.QuoteWithdrawal(ctx, f.acc.ID, apr1)

	// Assert: one month since March, not three since January.
	require.NoError(t, err)
	assert.Equal(t, 1, calc.MonthsHeld)
	assert.True(t, decimal.NewFromInt(10_000).Equal(calc.InterestEarned), "interest %s", calc.InterestEarned)
}

func TestQuoteWithdrawal_WritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_000_000), jan1)
	require.NoError(t, err)

	calc, err := f.svc.QuoteWithdrawal(ctx, f.acc.ID, apr1)

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1_015_000).Equal(calc.EndingBalance))
	assert.True(t, decimal.RequireFromString("0.005").Equal(calc.MonthlyReturn))
	txs, err := f.ledger.ListTransactions(ctx, f.acc.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestSettle_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		t.Run("deposit "+amount.String(), func(t *testing.T) {
			_, err := f.svc.SettleDeposit(ctx, f.acc.ID, amount, jan1)
			assert.ErrorIs(t, err, ErrValidation)
			assert.EqualError(t, err, "amount must be greater than 0")
		})
		t.Run("withdrawal "+amount.String(), func(t *testing.T) {
			_, err := f.svc.SettleWithdrawal(ctx, f.acc.ID, amount, jan1)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	t.Run("yearly return above one", func(t *testing.T) {
		require.NoError(t, f.ledger.CreateDepositoType(ctx, model.DepositoType{ID: "broken", Name: "Broken", YearlyReturn: decimal.RequireFromString("1.5")}))
		require.NoError(t, f.ledger.CreateAccount(ctx, model.Account{ID: "acc-broken", CustomerID: "customer-2", DepositoTypeID: "broken", Balance: decimal.Zero}))
		_, err := f.svc.SettleDeposit(ctx, "acc-broken", decimal.NewFromInt(100), jan1)
		require.NoError(t, err)

		_, err = f.svc.SettleWithdrawal(ctx, "acc-broken", decimal.NewFromInt(10), apr1)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestSettle_MissingRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SettleDeposit(ctx, "missing", decimal.NewFromInt(1), jan1)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "account", notFound.Resource)

	_, err = f.svc.SettleWithdrawal(ctx, "missing", decimal.NewFromInt(1), jan1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// An account whose deposito type has since vanished.
	require.NoError(t, f.ledger.CreateDepositoType(ctx, model.DepositoType{ID: "temp", Name: "Temp", YearlyReturn: decimal.RequireFromString("0.01")}))
	mem := f.ledger.Store.(*storage.MemoryStore)
	require.NoError(t, mem.CreateAccount(ctx, model.Account{ID: "acc-orphan", CustomerID: "customer-3", DepositoTypeID: "temp", Balance: decimal.Zero}))
	f.ledger.Store = &missingTypes{Store: mem}

	_, err = f.svc.QuoteWithdrawal(ctx, "acc-orphan", apr1)
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "deposito type", notFound.Resource)
}

type missingTypes struct{ storage.Store }

func (missingTypes) GetDepositoType(_ context.Context, id string) (*model.DepositoType, error) {
	return nil, fmt.Errorf("deposito type %s: %w", id, storage.ErrNotFound)
}

func TestSettle_StorageErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_000), jan1)
	require.NoError(t, err)

	boom := errors.New("disk full")
	f.ledger.applyErr = boom

	_, err = f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1), jan1)
	assert.ErrorIs(t, err, boom)
	_, err = f.svc.SettleWithdrawal(ctx, f.acc.ID, decimal.NewFromInt(1), apr1)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrValidation)

	acc, err := f.ledger.GetAccount(ctx, f.acc.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1_000).Equal(acc.Balance))
}

func TestSettle_ConcurrentOnOneAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(100), jan1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	var errorList []error
	for err := range errs {
		errorList = append(errorList, err)
	}
	require.Empty(t, errorList, "serialized settlements should never conflict: %v", errorList)

	acc, err := f.ledger.GetAccount(ctx, f.acc.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100*n).Equal(acc.Balance), "balance %s", acc.Balance)
	txs, err := f.ledger.ListTransactions(ctx, f.acc.ID)
	require.NoError(t, err)
	assert.Len(t, txs, n)
	assert.Zero(t, f.svc.locks.size(), "idle locks are released")
}

func TestSettle_RoundTripIsReproducible(t *testing.T) {
	ctx := context.Background()
	run := func() ([]model.Transaction, decimal.Decimal) {
		f := newFixture(t)
		_, err := f.svc.SettleDeposit(ctx, f.acc.ID, decimal.NewFromInt(1_000_000), jan1)
		require.NoError(t, err)
		_, err = f.svc.SettleWithdrawal(ctx, f.acc.ID, decimal.NewFromInt(250_000), time.Date(2024, time.August, 20, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		txs, err := f.ledger.ListTransactions(ctx, f.acc.ID)
		require.NoError(t, err)
		acc, err := f.ledger.GetAccount(ctx, f.acc.ID)
		require.NoError(t, err)
		return txs, acc.Balance
	}

	first, balance := run()
	second, _ := run()

	require.Len(t, first, 2)
	// 7 months at 6%: 1,000,000 × 7 × 0.06 / 12 = 35,000.
	assert.True(t, decimal.NewFromInt(785_000).Equal(balance), "balance %s", balance)
	assert.True(t, first[0].BalanceAfter.Equal(balance))

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestOpenAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("initial balance is booked as the first deposit", func(t *testing.T) {
		acc, err := f.svc.OpenAccount(ctx, "customer-2", "deposito-3", decimal.NewFromInt(2_000_000))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(2_000_000).Equal(acc.Balance))

		latest, err := f.ledger.Store.FindLatestDeposit(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(2_000_000).Equal(latest.Amount))
	})

	t.Run("zero initial balance books nothing", func(t *testing.T) {
		acc, err := f.svc.OpenAccount(ctx, "customer-3", "deposito-3", decimal.Zero)
		require.NoError(t, err)
		txs, err := f.ledger.ListTransactions(ctx, acc.ID)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("negative initial balance", func(t *testing.T) {
		_, err := f.svc.OpenAccount(ctx, "customer-3", "deposito-1", decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("one account per deposito type", func(t *testing.T) {
		_, err := f.svc.OpenAccount(ctx, "customer-2", "deposito-3", decimal.Zero)
		assert.ErrorIs(t, err, storage.ErrDuplicateAccount)
	})
}

func TestOpenAccount_FailedOpeningDepositLeavesNoAccount(t *testing.T) {
	t.Run("storage error", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		// Arrange
		boom := errors.New("disk full")
		f.ledger.applyErr = boom

		// Act
		_, err := f.svc.OpenAccount(ctx, "customer-2", "deposito-2", decimal.NewFromInt(500_000))

		// Assert
		assert.ErrorIs(t, err, boom)
		accounts, err := f.ledger.ListAccounts(ctx, "customer-2")
		require.NoError(t, err)
		assert.Empty(t, accounts)

		// A retry once storage recovers is not a duplicate.
		f.ledger.applyErr = nil
		acc, err := f.svc.OpenAccount(ctx, "customer-2", "deposito-2", decimal.NewFromInt(500_000))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(500_000).Equal(acc.Balance))
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.svc.OpenAccount(ctx, "customer-3", "deposito-2", decimal.NewFromInt(1_000))

		assert.ErrorIs(t, err, context.Canceled)
		accounts, err := f.ledger.ListAccounts(context.Background(), "customer-3")
		require.NoError(t, err)
		assert.Empty(t, accounts)
	})
}
