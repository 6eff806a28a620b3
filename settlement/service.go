// Package settlement applies deposits and withdrawals to the ledger. A
// withdrawal first accrues simple interest since the account's latest deposit
// and then checks the requested amount against principal plus interest.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deposito-ledger/interest"
	"deposito-ledger/model"
	"deposito-ledger/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the part of storage.Store that settlement needs.
type Ledger interface {
	CreateAccount(ctx context.Context, a model.Account) error
	DeleteAccount(ctx context.Context, id string) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetDepositoType(ctx context.Context, id string) (*model.DepositoType, error)
	FindLatestDeposit(ctx context.Context, accountID string) (*model.Transaction, error)
	ApplySettlement(ctx context.Context, tx model.Transaction) error
}

// Service settles deposits and withdrawals. Settlements on the same account
// run one at a time; different accounts proceed in parallel.
type Service struct {
	ledger Ledger
	locks  *keyedLocker
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewService(ledger Ledger, logger *slog.Logger) *Service {
	return &Service{
		ledger: ledger,
		locks:  newKeyedLocker(),
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// OpenAccount creates an empty account and, when initialBalance is positive,
// books it as the first deposit so it anchors interest accrual. If that
// deposit fails the account is removed again.
func (s *Service) OpenAccount(ctx context.Context, customerID, depositoTypeID string, initialBalance decimal.Decimal) (*model.Account, error) {
	if initialBalance.IsNegative() {
		return nil, validationf("initial balance must not be negative")
	}

	now := s.now().UTC()
	acc := model.Account{
		ID:             s.newID(),
		CustomerID:     customerID,
		DepositoTypeID: depositoTypeID,
		Balance:        decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.ledger.CreateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info("account opened", "account_id", acc.ID, "customer_id", customerID, "deposito_type_id", depositoTypeID)

	if initialBalance.IsPositive() {
		tx, err := s.SettleDeposit(ctx, acc.ID, initialBalance, now)
		if err != nil {
			// ctx may already be done; the cleanup must still run.
			if delErr := s.ledger.DeleteAccount(context.WithoutCancel(ctx), acc.ID); delErr != nil {
				s.logger.Error("could not remove account after failed opening deposit",
					"account_id", acc.ID, "error", delErr)
				return nil, errors.Join(err, fmt.Errorf("remove account %s: %w", acc.ID, delErr))
			}
			s.logger.Warn("account removed after failed opening deposit", "account_id", acc.ID, "error", err)
			return nil, err
		}
		acc.Balance = tx.BalanceAfter
		acc.UpdatedAt = tx.CreatedAt
	}
	return &acc, nil
}

// SettleDeposit books a DEPOSIT of amount on depositDate. No interest is
// involved; the deposit becomes the anchor for later withdrawals.
func (s *Service) SettleDeposit(ctx context.Context, accountID string, amount decimal.Decimal, depositDate time.Time) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, validationf("amount must be greater than 0")
	}

	unlock, err := s.locks.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	acc, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	tx := model.Transaction{
		ID:            s.newID(),
		AccountID:     accountID,
		Type:          model.TransactionTypeDeposit,
		Amount:        amount,
		Date:          depositDate,
		BalanceBefore: acc.Balance,
		BalanceAfter:  acc.Balance.Add(amount),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.ledger.ApplySettlement(ctx, tx); err != nil {
		return nil, fmt.Errorf("apply deposit: %w", err)
	}

	s.logger.Info("deposit settled",
		"account_id", accountID,
		"amount", amount.String(),
		"balance_after", tx.BalanceAfter.String())
	return &tx, nil
}

// SettleWithdrawal accrues interest on the current balance from the latest
// deposit to withdrawalDate and withdraws amount from the result.
func (s *Service) SettleWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, withdrawalDate time.Time) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, validationf("amount must be greater than 0")
	}

	unlock, err := s.locks.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	acc, calc, err := s.accrue(ctx, accountID, withdrawalDate)
	if err != nil {
		return nil, err
	}

	if amount.GreaterThan(calc.EndingBalance) {
		s.logger.Warn("withdrawal rejected",
			"account_id", accountID,
			"amount", amount.String(),
			"available", calc.EndingBalance.String())
		return nil, &InsufficientFundsError{Available: calc.EndingBalance, Requested: amount}
	}

	months := calc.MonthsHeld
	earned := calc.InterestEarned
	tx := model.Transaction{
		ID:             s.newID(),
		AccountID:      accountID,
		Type:           model.TransactionTypeWithdrawal,
		Amount:         amount,
		Date:           withdrawalDate,
		BalanceBefore:  acc.Balance,
		BalanceAfter:   calc.EndingBalance.Sub(amount),
		InterestEarned: &earned,
		MonthsHeld:     &months,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.ledger.ApplySettlement(ctx, tx); err != nil {
		return nil, fmt.Errorf("apply withdrawal: %w", err)
	}

	s.logger.Info("withdrawal settled",
		"account_id", accountID,
		"amount", amount.String(),
		"months_held", months,
		"interest_earned", earned.String(),
		"balance_after", tx.BalanceAfter.String())
	return &tx, nil
}

// QuoteWithdrawal returns the accrual a withdrawal on withdrawalDate would
// see, without writing anything.
func (s *Service) QuoteWithdrawal(ctx context.Context, accountID string, withdrawalDate time.Time) (interest.Calculation, error) {
	_, calc, err := s.accrue(ctx, accountID, withdrawalDate)
	return calc, err
}

func (s *Service) accrue(ctx context.Context, accountID string, withdrawalDate time.Time) (*model.Account, interest.Calculation, error) {
	acc, err := s.account(ctx, accountID)
	if err != nil {
		return nil, interest.Calculation{}, err
	}

	dt, err := s.ledger.GetDepositoType(ctx, acc.DepositoTypeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, interest.Calculation{}, &NotFoundError{Resource: "deposito type", ID: acc.DepositoTypeID}
		}
		return nil, interest.Calculation{}, fmt.Errorf("get deposito type: %w", err)
	}
	if dt.YearlyReturn.IsNegative() || dt.YearlyReturn.GreaterThan(decimal.NewFromInt(1)) {
		return nil, interest.Calculation{}, validationf("yearly return %s of deposito type %s is outside [0, 1]", dt.YearlyReturn, dt.ID)
	}

	anchor, err := s.ledger.FindLatestDeposit(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, interest.Calculation{}, &NotFoundError{Resource: "deposit", ID: accountID, Message: "no deposit found for this account"}
		}
		return nil, interest.Calculation{}, fmt.Errorf("find latest deposit: %w", err)
	}

	return acc, interest.Calculate(acc.Balance, anchor.Date, withdrawalDate, dt.YearlyReturn), nil
}

func (s *Service) account(ctx context.Context, id string) (*model.Account, error) {
	acc, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "account", ID: id}
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}
