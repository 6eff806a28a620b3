// storage/postgres/postgres.go

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deposito-ledger/model"
	"deposito-ledger/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres error codes we translate into storage errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements storage.Store for PostgreSQL.
type Store struct {
	db      *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

// New connects to the database, retrying for a few seconds, and creates the
// schema. Every later call is bounded by timeout when it is positive.
func New(ctx context.Context, connString string, timeout time.Duration, logger *slog.Logger) (*Store, error) {
	var pool *pgxpool.Pool
	var err error

	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.New(ctx, connString)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		logger.Warn("postgres not ready", "attempt", attempt, "error", err)
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to database after retries: %w", err)
	}

	store := &Store{db: pool, timeout: timeout, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return store, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS deposito_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		yearly_return NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers (id),
		deposito_type_id TEXT NOT NULL REFERENCES deposito_types (id),
		balance NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (customer_id, deposito_type_id)
	)`,
	// NUMERIC without precision keeps every digit the interest calculation produces.
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		balance_before NUMERIC NOT NULL,
		balance_after NUMERIC NOT NULL,
		interest_earned NUMERIC,
		months_held INTEGER,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_account_date_idx
		ON transactions (account_id, date DESC, created_at DESC)`,
}

// initSchema creates the necessary tables if they don't exist.
func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// CreateCustomer inserts c, or fails with storage.ErrAlreadyExists.
func (s *Store) CreateCustomer(ctx context.Context, c model.Customer) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	query := `
		INSERT INTO customers (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	tag, err := s.db.Exec(ctx, query, c.ID, c.Name, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", c.ID, storage.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	c := &model.Customer{ID: id}
	query := "SELECT name, created_at, updated_at FROM customers WHERE id = $1"
	err := s.db.QueryRow(ctx, query, id).Scan(&c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", id, storage.ErrNotFound)
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.Query(ctx, "SELECT id, name, created_at, updated_at FROM customers ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	out := make([]model.Customer, 0)
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("could not scan customer row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, c model.Customer) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.db.Exec(ctx, "UPDATE customers SET name = $1, updated_at = $2 WHERE id = $3", c.Name, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", c.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.db.Exec(ctx, "DELETE FROM customers WHERE id = $1", id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("customer %s: %w", id, storage.ErrInUse)
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateDepositoType(ctx context.Context, d model.DepositoType) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	query := `
		INSERT INTO deposito_types (id, name, yearly_return, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	tag, err := s.db.Exec(ctx, query, d.ID, d.Name, d.YearlyReturn, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert deposito type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deposito type %s: %w", d.ID, storage.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetDepositoType(ctx context.Context, id string) (*model.DepositoType, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	d := &model.DepositoType{ID: id}
	query := "SELECT name, yearly_return, created_at, updated_at FROM deposito_types WHERE id = $1"
	err := s.db.QueryRow(ctx, query, id).Scan(&d.Name, &d.YearlyReturn, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("deposito type %s: %w", id, storage.ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

func (s *Store) ListDepositoTypes(ctx context.Context) ([]model.DepositoType, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.Query(ctx, "SELECT id, name, yearly_return, created_at, updated_at FROM deposito_types ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query deposito types: %w", err)
	}
	defer rows.Close()

	out := make([]model.DepositoType, 0)
	for rows.Next() {
		var d model.DepositoType
		if err := rows.Scan(&d.ID, &d.Name, &d.YearlyReturn, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("could not scan deposito type row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) UpdateDepositoType(ctx context.Context, d model.DepositoType) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	query := "UPDATE deposito_types SET name = $1, yearly_return = $2, updated_at = $3 WHERE id = $4"
	tag, err := s.db.Exec(ctx, query, d.Name, d.YearlyReturn, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("update deposito type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deposito type %s: %w", d.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteDepositoType(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.db.Exec(ctx, "DELETE FROM deposito_types WHERE id = $1", id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("deposito type %s: %w", id, storage.ErrInUse)
		}
		return fmt.Errorf("delete deposito type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deposito type %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// CreateAccount relies on the table constraints: the (customer, deposito type)
// unique key and the two foreign keys.
func (s *Store) CreateAccount(ctx context.Context, a model.Account) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	query := `
		INSERT INTO accounts (id, customer_id, deposito_type_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	tag, err := s.db.Exec(ctx, query, a.ID, a.CustomerID, a.DepositoTypeID, a.Balance, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return storage.ErrDuplicateAccount
		case codeForeignKeyViolation:
			return fmt.Errorf("customer %s or deposito type %s: %w", a.CustomerID, a.DepositoTypeID, storage.ErrNotFound)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", a.ID, storage.ErrAlreadyExists)
	}
	return nil
}

// GetAccount retrieves a single account by its ID.
func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	acc := &model.Account{ID: id}
	query := "SELECT customer_id, deposito_type_id, balance, created_at, updated_at FROM accounts WHERE id = $1"
	err := s.db.QueryRow(ctx, query, id).Scan(&acc.CustomerID, &acc.DepositoTypeID, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
		}
		return nil, err
	}
	return acc, nil
}

func (s *Store) ListAccounts(ctx context.Context, customerID string) ([]model.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	query := `
		SELECT id, customer_id, deposito_type_id, balance, created_at, updated_at
		FROM accounts
		WHERE $1 = '' OR customer_id = $1
		ORDER BY created_at, id`
	rows, err := s.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	out := make([]model.Account, 0)
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.DepositoTypeID, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("could not scan account row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAccount locks the row, checks the balance and deletes; the ledger goes
// with it through ON DELETE CASCADE.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction has been committed.

	var balance decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
		}
		return fmt.Errorf("could not lock account: %w", err)
	}
	if balance.IsPositive() {
		return storage.ErrAccountHasBalance
	}
	if _, err := tx.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id); err != nil {
		return fmt.Errorf("could not delete account: %w", err)
	}
	return tx.Commit(ctx)
}

const transactionColumns = `id, account_id, type, amount, date, balance_before, balance_after, interest_earned, months_held, created_at`

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var (
		tx       model.Transaction
		interest decimal.NullDecimal
		months   *int32
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Date,
		&tx.BalanceBefore, &tx.BalanceAfter, &interest, &months, &tx.CreatedAt)
	if err != nil {
		return tx, err
	}
	// pgx scans TIMESTAMPTZ in the local zone; ledger dates are UTC.
	tx.Date = tx.Date.UTC()
	tx.CreatedAt = tx.CreatedAt.UTC()
	if interest.Valid {
		tx.InterestEarned = &interest.Decimal
	}
	if months != nil {
		m := int(*months)
		tx.MonthsHeld = &m
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)", accountID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE account_id = $1
		ORDER BY date DESC, created_at DESC`
	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan transaction row: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) FindLatestDeposit(ctx context.Context, accountID string) (*model.Transaction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE account_id = $1 AND type = $2
		ORDER BY date DESC, created_at DESC
		LIMIT 1`
	tx, err := scanTransaction(s.db.QueryRow(ctx, query, accountID, model.TransactionTypeDeposit))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("deposit for account %s: %w", accountID, storage.ErrNotFound)
		}
		return nil, err
	}
	return &tx, nil
}

// ApplySettlement appends the ledger entry and moves the balance within one
// database transaction. The account row is locked with FOR UPDATE so writers
// in other processes queue behind us, and the balance is compared against
// tx.BalanceBefore before anything is written.
func (s *Store) ApplySettlement(ctx context.Context, t model.Transaction) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction has been committed.

	var balance decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", t.AccountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("account %s: %w", t.AccountID, storage.ErrNotFound)
		}
		return fmt.Errorf("could not lock account: %w", err)
	}
	if !balance.Equal(t.BalanceBefore) {
		return fmt.Errorf("account %s holds %s, settlement expected %s: %w",
			t.AccountID, balance, t.BalanceBefore, storage.ErrBalanceConflict)
	}

	insert := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := tx.Exec(ctx, insert, t.ID, t.AccountID, string(t.Type), t.Amount, t.Date,
		t.BalanceBefore, t.BalanceAfter, t.InterestEarned, t.MonthsHeld, t.CreatedAt); err != nil {
		return fmt.Errorf("could not append transaction: %w", err)
	}

	update := "UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3"
	if _, err := tx.Exec(ctx, update, t.BalanceAfter, t.CreatedAt, t.AccountID); err != nil {
		return fmt.Errorf("could not update balance: %w", err)
	}

	return tx.Commit(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

var _ storage.Store = (*Store)(nil)
