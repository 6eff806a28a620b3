package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"deposito-ledger/model"
	"deposito-ledger/wal"
)

const (
	opCustomerPut     = "customer.put"
	opCustomerDelete  = "customer.delete"
	opDepositoPut     = "deposito_type.put"
	opDepositoDelete  = "deposito_type.delete"
	opAccountPut      = "account.put"
	opAccountDelete   = "account.delete"
	opSettlementApply = "settlement.apply"
)

// journalEntry is one mutation as written to the WAL.
type journalEntry struct {
	Op           string              `json:"op"`
	ID           string              `json:"id,omitempty"`
	Customer     *model.Customer     `json:"customer,omitempty"`
	DepositoType *model.DepositoType `json:"deposito_type,omitempty"`
	Account      *model.Account      `json:"account,omitempty"`
	Transaction  *model.Transaction  `json:"transaction,omitempty"`
}

// MemoryStore keeps the whole ledger in maps guarded by one RWMutex. With a
// journal attached every mutation is written and fsynced before it is
// applied, and NewMemoryStore replays the journal to rebuild state.
type MemoryStore struct {
	mu            sync.RWMutex
	customers     map[string]model.Customer
	depositoTypes map[string]model.DepositoType
	accounts      map[string]model.Account
	transactions  map[string][]model.Transaction // by account id, append order
	journal       *wal.WAL
}

// NewMemoryStore returns an empty store, or the state recorded in journal
// when one is given. journal may be nil. The store owns journal from here on:
// if replay fails the journal is closed before the error is returned.
func NewMemoryStore(journal *wal.WAL) (*MemoryStore, error) {
	s := &MemoryStore{
		customers:     make(map[string]model.Customer),
		depositoTypes: make(map[string]model.DepositoType),
		accounts:      make(map[string]model.Account),
		transactions:  make(map[string][]model.Transaction),
		journal:       journal,
	}
	if journal == nil {
		return s, nil
	}
	// Single goroutine until we return, no lock needed.
	err := journal.Replay(func(raw json.RawMessage) error {
		var entry journalEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("decode journal entry: %w", err)
		}
		return s.apply(entry)
	})
	if err != nil {
		if closeErr := journal.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("recover memory store: %w", err)
	}
	return s, nil
}

// commit journals entry, then applies it. Callers hold s.mu.
func (s *MemoryStore) commit(entry journalEntry) error {
	if s.journal != nil {
		if err := s.journal.Append(entry); err != nil {
			return err
		}
	}
	return s.apply(entry)
}

// apply mutates the maps without any validation; checks happen before an
// entry is journaled.
func (s *MemoryStore) apply(entry journalEntry) error {
	switch entry.Op {
	case opCustomerPut:
		s.customers[entry.Customer.ID] = *entry.Customer
	case opCustomerDelete:
		delete(s.customers, entry.ID)
	case opDepositoPut:
		s.depositoTypes[entry.DepositoType.ID] = *entry.DepositoType
	case opDepositoDelete:
		delete(s.depositoTypes, entry.ID)
	case opAccountPut:
		s.accounts[entry.Account.ID] = *entry.Account
	case opAccountDelete:
		delete(s.accounts, entry.ID)
		delete(s.transactions, entry.ID)
	case opSettlementApply:
		tx := *entry.Transaction
		acc := s.accounts[tx.AccountID]
		acc.Balance = tx.BalanceAfter
		acc.UpdatedAt = tx.CreatedAt
		s.accounts[tx.AccountID] = acc
		s.transactions[tx.AccountID] = append(s.transactions[tx.AccountID], tx)
	default:
		return fmt.Errorf("unknown journal op %q", entry.Op)
	}
	return nil
}

func (s *MemoryStore) CreateCustomer(_ context.Context, c model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; ok {
		return fmt.Errorf("customer %s: %w", c.ID, ErrAlreadyExists)
	}
	return s.commit(journalEntry{Op: opCustomerPut, Customer: &c})
}

func (s *MemoryStore) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) ListCustomers(_ context.Context) ([]model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateCustomer(_ context.Context, c model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[c.ID]
	if !ok {
		return fmt.Errorf("customer %s: %w", c.ID, ErrNotFound)
	}
	existing.Name = c.Name
	existing.UpdatedAt = c.UpdatedAt
	return s.commit(journalEntry{Op: opCustomerPut, Customer: &existing})
}

func (s *MemoryStore) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	for _, acc := range s.accounts {
		if acc.CustomerID == id {
			return fmt.Errorf("customer %s: %w", id, ErrInUse)
		}
	}
	return s.commit(journalEntry{Op: opCustomerDelete, ID: id})
}

func (s *MemoryStore) CreateDepositoType(_ context.Context, d model.DepositoType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.depositoTypes[d.ID]; ok {
		return fmt.Errorf("deposito type %s: %w", d.ID, ErrAlreadyExists)
	}
	return s.commit(journalEntry{Op: opDepositoPut, DepositoType: &d})
}

func (s *MemoryStore) GetDepositoType(_ context.Context, id string) (*model.DepositoType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.depositoTypes[id]
	if !ok {
		return nil, fmt.Errorf("deposito type %s: %w", id, ErrNotFound)
	}
	return &d, nil
}

func (s *MemoryStore) ListDepositoTypes(_ context.Context) ([]model.DepositoType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DepositoType, 0, len(s.depositoTypes))
	for _, d := range s.depositoTypes {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateDepositoType(_ context.Context, d model.DepositoType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.depositoTypes[d.ID]
	if !ok {
		return fmt.Errorf("deposito type %s: %w", d.ID, ErrNotFound)
	}
	existing.Name = d.Name
	existing.YearlyReturn = d.YearlyReturn
	existing.UpdatedAt = d.UpdatedAt
	return s.commit(journalEntry{Op: opDepositoPut, DepositoType: &existing})
}

func (s *MemoryStore) DeleteDepositoType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.depositoTypes[id]; !ok {
		return fmt.Errorf("deposito type %s: %w", id, ErrNotFound)
	}
	for _, acc := range s.accounts {
		if acc.DepositoTypeID == id {
			return fmt.Errorf("deposito type %s: %w", id, ErrInUse)
		}
	}
	return s.commit(journalEntry{Op: opDepositoDelete, ID: id})
}

func (s *MemoryStore) CreateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s: %w", a.ID, ErrAlreadyExists)
	}
	if _, ok := s.customers[a.CustomerID]; !ok {
		return fmt.Errorf("customer %s: %w", a.CustomerID, ErrNotFound)
	}
	if _, ok := s.depositoTypes[a.DepositoTypeID]; !ok {
		return fmt.Errorf("deposito type %s: %w", a.DepositoTypeID, ErrNotFound)
	}
	for _, existing := range s.accounts {
		if existing.CustomerID == a.CustomerID && existing.DepositoTypeID == a.DepositoTypeID {
			return ErrDuplicateAccount
		}
	}
	return s.commit(journalEntry{Op: opAccountPut, Account: &a})
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context, customerID string) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Account, 0)
	for _, a := range s.accounts {
		if customerID == "" || a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if a.Balance.IsPositive() {
		return ErrAccountHasBalance
	}
	return s.commit(journalEntry{Op: opAccountDelete, ID: id})
}

func (s *MemoryStore) ListTransactions(_ context.Context, accountID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	out := make([]model.Transaction, len(s.transactions[accountID]))
	copy(out, s.transactions[accountID])
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) FindLatestDeposit(_ context.Context, accountID string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.Transaction
	for i, tx := range s.transactions[accountID] {
		if tx.Type != model.TransactionTypeDeposit {
			continue
		}
		if latest == nil || newer(tx, *latest) {
			latest = &s.transactions[accountID][i]
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("deposit for account %s: %w", accountID, ErrNotFound)
	}
	found := *latest
	return &found, nil
}

func (s *MemoryStore) ApplySettlement(_ context.Context, tx model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[tx.AccountID]
	if !ok {
		return fmt.Errorf("account %s: %w", tx.AccountID, ErrNotFound)
	}
	if !acc.Balance.Equal(tx.BalanceBefore) {
		return fmt.Errorf("account %s holds %s, settlement expected %s: %w",
			tx.AccountID, acc.Balance, tx.BalanceBefore, ErrBalanceConflict)
	}
	return s.commit(journalEntry{Op: opSettlementApply, Transaction: &tx})
}

// Close closes the journal, if any.
func (s *MemoryStore) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

// newer orders ledger entries by date, then by creation time.
func newer(a, b model.Transaction) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortNewestFirst(txs []model.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return newer(txs[i], txs[j]) })
}

var _ Store = (*MemoryStore)(nil)
