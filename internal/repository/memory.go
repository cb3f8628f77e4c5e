package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"moneymover/internal/domain"
)

// MemoryStore is the in-memory account store backend. It backs tests and
// dependency-free deployments; the Postgres store is the durable option.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]domain.Account
	transactions map[string][]domain.TransactionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]domain.Account),
		transactions: make(map[string][]domain.TransactionRecord),
	}
}

func (s *MemoryStore) FindAccount(_ context.Context, name string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[name]
	if !ok {
		return nil, fmt.Errorf("FindAccount: %q: %w", name, domain.ErrNotFound)
	}
	return &a, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, name string, initialBalance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[name]; ok {
		return fmt.Errorf("CreateAccount: %q: %w", name, domain.ErrAlreadyExists)
	}
	s.accounts[name] = domain.Account{Name: name, Balance: initialBalance, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[name]; !ok {
		return fmt.Errorf("DeleteAccount: %q: %w", name, domain.ErrNotFound)
	}
	delete(s.accounts, name)
	delete(s.transactions, name)
	return nil
}

// ApplyTransaction commits the balance and the record under one lock hold,
// mirroring the atomicity the Postgres store gets from a database transaction.
func (s *MemoryStore) ApplyTransaction(_ context.Context, name string, newBalance int64, record *domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[name]
	if !ok {
		return fmt.Errorf("ApplyTransaction: %q: %w", name, domain.ErrNotFound)
	}
	a.Balance = newBalance
	s.accounts[name] = a
	s.transactions[name] = append(s.transactions[name], *record)
	return nil
}

func (s *MemoryStore) TransactionsByAccount(_ context.Context, name string) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]domain.TransactionRecord, len(s.transactions[name]))
	copy(records, s.transactions[name])
	return records, nil
}

func (s *MemoryStore) ListAccountNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.accounts))
	for name := range s.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
