// Package gormstore implements storage.Store on GORM, for PostgreSQL or MySQL.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deposito-ledger/model"
	"deposito-ledger/storage"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Config selects the dialect and connection.
type Config struct {
	Driver   string // "postgres" or "mysql"
	DSN      string
	Timeout  time.Duration
	LogLevel string // gorm logger level: silent, error, warn, info
}

// Store implements storage.Store with GORM.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// New wraps an open *gorm.DB. The schema must already exist; Open migrates it.
func New(db *gorm.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// Open connects with retries and runs AutoMigrate.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newLogger(cfg.LogLevel),
	}

	var db *gorm.DB
	var err error
	const maxRetries = 5
	for i := 1; i <= maxRetries; i++ {
		db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr != nil {
				err = dbErr
			} else if err = sqlDB.Ping(); err == nil {
				break
			}
		}
		log.Warn("database not ready", "driver", cfg.Driver, "attempt", i, "error", err)
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, maxRetries, err)
	}

	if err := db.AutoMigrate(&customerRow{}, &depositoTypeRow{}, &accountRow{}, &transactionRow{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return New(db, cfg.Timeout), nil
}

func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error
	}
	return logger.Default.LogMode(logLevel)
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), storage.ErrNotFound)
	}
	return err
}

func (s *Store) CreateCustomer(ctx context.Context, c model.Customer) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	row := customerRow{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("insert customer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("customer %s: %w", c.ID, storage.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var row customerRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "customer %s", id)
	}
	c := customerFromRow(row)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var rows []customerRow
	if err := db.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	out := make([]model.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, customerFromRow(r))
	}
	return out, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c model.Customer) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	res := db.Model(&customerRow{}).Where("id = ?", c.ID).
		Updates(map[string]any{"name": c.Name, "updated_at": c.UpdatedAt})
	if res.Error != nil {
		return fmt.Errorf("update customer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("customer %s: %w", c.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	return db.Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&accountRow{}).Where("customer_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("customer %s: %w", id, storage.ErrInUse)
		}
		res := tx.Delete(&customerRow{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete customer: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("customer %s: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) CreateDepositoType(ctx context.Context, d model.DepositoType) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	row := depositoTypeRow{ID: d.ID, Name: d.Name, YearlyReturn: d.YearlyReturn, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("insert deposito type: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deposito type %s: %w", d.ID, storage.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetDepositoType(ctx context.Context, id string) (*model.DepositoType, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var row depositoTypeRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "deposito type %s", id)
	}
	d := depositoTypeFromRow(row)
	return &d, nil
}

func (s *Store) ListDepositoTypes(ctx context.Context) ([]model.DepositoType, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var rows []depositoTypeRow
	if err := db.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query deposito types: %w", err)
	}
	out := make([]model.DepositoType, 0, len(rows))
	for _, r := range rows {
		out = append(out, depositoTypeFromRow(r))
	}
	return out, nil
}

func (s *Store) UpdateDepositoType(ctx context.Context, d model.DepositoType) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	res := db.Model(&depositoTypeRow{}).Where("id = ?", d.ID).
		Updates(map[string]any{"name": d.Name, "yearly_return": d.YearlyReturn, "updated_at": d.UpdatedAt})
	if res.Error != nil {
		return fmt.Errorf("update deposito type: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deposito type %s: %w", d.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteDepositoType(ctx context.Context, id string) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	return db.Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&accountRow{}).Where("deposito_type_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("deposito type %s: %w", id, storage.ErrInUse)
		}
		res := tx.Delete(&depositoTypeRow{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete deposito type: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("deposito type %s: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

// CreateAccount checks the references and the one-account-per-type rule in
// the same transaction as the insert.
func (s *Store) CreateAccount(ctx context.Context, a model.Account) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	return db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&customerRow{}).Where("id = ?", a.CustomerID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("customer %s: %w", a.CustomerID, storage.ErrNotFound)
		}
		if err := tx.Model(&depositoTypeRow{}).Where("id = ?", a.DepositoTypeID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("deposito type %s: %w", a.DepositoTypeID, storage.ErrNotFound)
		}
		err := tx.Model(&accountRow{}).
			Where("customer_id = ? AND deposito_type_id = ?", a.CustomerID, a.DepositoTypeID).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return storage.ErrDuplicateAccount
		}

		row := accountRow{
			ID:             a.ID,
			CustomerID:     a.CustomerID,
			DepositoTypeID: a.DepositoTypeID,
			Balance:        a.Balance,
			CreatedAt:      a.CreatedAt,
			UpdatedAt:      a.UpdatedAt,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("insert account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %s: %w", a.ID, storage.ErrAlreadyExists)
		}
		return nil
	})
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var row accountRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "account %s", id)
	}
	a := accountFromRow(row)
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context, customerID string) ([]model.Account, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	q := db.Order("created_at, id")
	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}
	var rows []accountRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	out := make([]model.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, accountFromRow(r))
	}
	return out, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	return db.Transaction(func(tx *gorm.DB) error {
		var row accountRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", id).Error; err != nil {
			return notFound(err, "account %s", id)
		}
		if row.Balance.IsPositive() {
			return storage.ErrAccountHasBalance
		}
		if err := tx.Delete(&transactionRow{}, "account_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		if err := tx.Delete(&accountRow{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var n int64
	if err := db.Model(&accountRow{}).Where("id = ?", accountID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check account: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}

	var rows []transactionRow
	err := db.Where("account_id = ?", accountID).Order("date DESC, created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	out := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, transactionFromRow(r))
	}
	return out, nil
}

func (s *Store) FindLatestDeposit(ctx context.Context, accountID string) (*model.Transaction, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var row transactionRow
	err := db.Where("account_id = ? AND type = ?", accountID, string(model.TransactionTypeDeposit)).
		Order("date DESC, created_at DESC").
		Take(&row).Error
	if err != nil {
		return nil, notFound(err, "deposit for account %s", accountID)
	}
	t := transactionFromRow(row)
	return &t, nil
}

// ApplySettlement locks the account row (SELECT ... FOR UPDATE), checks the
// expected balance, then appends and updates in the same transaction.
func (s *Store) ApplySettlement(ctx context.Context, t model.Transaction) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	return db.Transaction(func(tx *gorm.DB) error {
		var acc accountRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&acc, "id = ?", t.AccountID).Error; err != nil {
			return notFound(err, "account %s", t.AccountID)
		}
		if !acc.Balance.Equal(t.BalanceBefore) {
			return fmt.Errorf("account %s holds %s, settlement expected %s: %w",
				t.AccountID, acc.Balance, t.BalanceBefore, storage.ErrBalanceConflict)
		}

		row := transactionToRow(t)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("could not append transaction: %w", err)
		}
		err := tx.Model(&accountRow{}).Where("id = ?", t.AccountID).
			Updates(map[string]any{"balance": t.BalanceAfter, "updated_at": t.CreatedAt}).Error
		if err != nil {
			return fmt.Errorf("could not update balance: %w", err)
		}
		return nil
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ storage.Store = (*Store)(nil)
