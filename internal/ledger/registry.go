package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"moneymover/internal/domain"
	"moneymover/internal/metrics"
)

// Registry owns the set of ledgers for the process lifetime. Ledgers are
// hydrated from the store on first use; accounts created by another process
// instance become visible through hydration and ListNames.
//
// Accounts must be created explicitly: an unknown name fails NotFound rather
// than vivifying at zero balance.
type Registry struct {
	store Store

	mu          sync.RWMutex
	ledgers     map[string]*Ledger
	unavailable map[string]struct{}
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store:       store,
		ledgers:     make(map[string]*Ledger),
		unavailable: make(map[string]struct{}),
	}
}

// Create adds a new account with the given starting balance.
func (r *Registry) Create(ctx context.Context, name string, initialBalance int64) error {
	if name == "" {
		return fmt.Errorf("Create: %w", domain.ErrInvalidName)
	}
	if initialBalance < 0 {
		return fmt.Errorf("Create: %w", domain.ErrInvalidBalance)
	}

	_, err := r.store.FindAccount(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("Create: %q: %w", name, domain.ErrAlreadyExists)
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("Create: %w", err)
	}

	if err := r.store.CreateAccount(ctx, name, initialBalance); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	r.mu.Lock()
	r.ledgers[name] = newLedger(&domain.Account{Name: name, Balance: initialBalance}, nil, r.store)
	r.mu.Unlock()

	metrics.LedgerOps.WithLabelValues("create", "ok").Inc()
	return nil
}

// Delete removes the account. Its transaction history is not retained.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if _, err := r.store.FindAccount(ctx, name); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if err := r.store.DeleteAccount(ctx, name); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	r.mu.Lock()
	delete(r.ledgers, name)
	delete(r.unavailable, name)
	r.mu.Unlock()

	metrics.LedgerOps.WithLabelValues("delete", "ok").Inc()
	return nil
}

func (r *Registry) Balance(ctx context.Context, name string) (int64, error) {
	if err := r.ensureAvailable(name); err != nil {
		return 0, fmt.Errorf("Balance: %w", err)
	}
	l, err := r.ledger(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("Balance: %w", err)
	}
	return l.Balance(), nil
}

func (r *Registry) Deposit(ctx context.Context, name string, amount int64, idempotencyKey string) (string, error) {
	if err := r.ensureAvailable(name); err != nil {
		metrics.LedgerOps.WithLabelValues("deposit", "unavailable").Inc()
		return "", err
	}
	l, err := r.ledger(ctx, name)
	if err != nil {
		metrics.LedgerOps.WithLabelValues("deposit", "error").Inc()
		return "", err
	}
	id, err := l.Deposit(ctx, amount, idempotencyKey)
	if err != nil {
		metrics.LedgerOps.WithLabelValues("deposit", "error").Inc()
		return "", err
	}
	metrics.LedgerOps.WithLabelValues("deposit", "ok").Inc()
	return id, nil
}

func (r *Registry) Withdraw(ctx context.Context, name string, amount int64, idempotencyKey string) (string, error) {
	if err := r.ensureAvailable(name); err != nil {
		metrics.LedgerOps.WithLabelValues("withdraw", "unavailable").Inc()
		return "", err
	}
	l, err := r.ledger(ctx, name)
	if err != nil {
		metrics.LedgerOps.WithLabelValues("withdraw", "error").Inc()
		return "", err
	}
	id, err := l.Withdraw(ctx, amount, idempotencyKey)
	if err != nil {
		metrics.LedgerOps.WithLabelValues("withdraw", "error").Inc()
		return "", err
	}
	metrics.LedgerOps.WithLabelValues("withdraw", "ok").Inc()
	return id, nil
}

// SetAvailability toggles the account's in-memory availability flag. The flag
// is intentionally volatile: it exists so operators can simulate a partial
// outage, and it resets to available on process restart.
func (r *Registry) SetAvailability(name string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if available {
		delete(r.unavailable, name)
	} else {
		r.unavailable[name] = struct{}{}
	}
}

func (r *Registry) IsAvailable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, off := r.unavailable[name]
	return !off
}

// ListNames returns every known account name from the store, not just the
// in-memory cache.
func (r *Registry) ListNames(ctx context.Context) ([]string, error) {
	names, err := r.store.ListAccountNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListNames: %w", err)
	}
	return names, nil
}

func (r *Registry) ensureAvailable(name string) error {
	if !r.IsAvailable(name) {
		return fmt.Errorf("%q: %w", name, domain.ErrUnavailable)
	}
	return nil
}

// ledger returns the cached ledger for name, hydrating it from the store on
// first use.
func (r *Registry) ledger(ctx context.Context, name string) (*Ledger, error) {
	r.mu.RLock()
	l, ok := r.ledgers[name]
	r.mu.RUnlock()
	if ok {
		return l, nil
	}

	account, err := r.store.FindAccount(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	records, err := r.store.TransactionsByAccount(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have hydrated while the store reads ran.
	if cached, ok := r.ledgers[name]; ok {
		return cached, nil
	}
	l = newLedger(account, records, r.store)
	r.ledgers[name] = l
	return l, nil
}
