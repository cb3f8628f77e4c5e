package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"moneymover/internal/domain"
	"moneymover/internal/metrics"
)

// Store is the persistence boundary the ledger writes through. The store is
// the source of truth for account existence; the in-memory ledger state is a
// cache rebuilt during hydration, never a correctness dependency across
// restarts.
type Store interface {
	FindAccount(ctx context.Context, name string) (*domain.Account, error)
	CreateAccount(ctx context.Context, name string, initialBalance int64) error
	DeleteAccount(ctx context.Context, name string) error
	// ApplyTransaction sets the new balance and records the transaction as one
	// atomic unit: either both land or neither does. A balance that moved with
	// no record would defeat replay protection after a restart.
	ApplyTransaction(ctx context.Context, name string, newBalance int64, record *domain.TransactionRecord) error
	TransactionsByAccount(ctx context.Context, name string) ([]domain.TransactionRecord, error)
	ListAccountNames(ctx context.Context) ([]string, error)
}

// Ledger tracks one account's balance and its idempotency log of processed
// requests. All mutations on the same account are serialized by the ledger's
// own mutex; unrelated accounts proceed concurrently.
type Ledger struct {
	name  string
	store Store

	mu        sync.Mutex
	balance   int64
	processed map[string]string // idempotency key -> transaction id
}

// newLedger rebuilds the idempotency log from the account's transaction
// records, so replay protection survives process restarts.
func newLedger(account *domain.Account, records []domain.TransactionRecord, store Store) *Ledger {
	processed := make(map[string]string, len(records))
	for _, rec := range records {
		processed[rec.IdempotencyKey] = rec.ID
	}
	return &Ledger{
		name:      account.Name,
		store:     store,
		balance:   account.Balance,
		processed: processed,
	}
}

func (l *Ledger) Balance() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Deposit credits the account. A repeated idempotency key returns the original
// transaction id without touching the balance.
func (l *Ledger) Deposit(ctx context.Context, amount int64, idempotencyKey string) (string, error) {
	if amount < 1 {
		return "", fmt.Errorf("Deposit: %w", domain.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.processed[idempotencyKey]; ok {
		metrics.LedgerReplays.Inc()
		return id, nil
	}
	return l.apply(ctx, domain.TransactionDeposit, amount, l.balance+amount, idempotencyKey)
}

// Withdraw debits the account. The idempotency check runs before the funds
// check: a replayed withdraw returns its original transaction id even if the
// balance has since dropped below the amount.
func (l *Ledger) Withdraw(ctx context.Context, amount int64, idempotencyKey string) (string, error) {
	if amount < 1 {
		return "", fmt.Errorf("Withdraw: %w", domain.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.processed[idempotencyKey]; ok {
		metrics.LedgerReplays.Inc()
		return id, nil
	}
	if amount > l.balance {
		return "", fmt.Errorf("Withdraw: balance=%d, requested=%d: %w", l.balance, amount, domain.ErrInsufficientFunds)
	}
	return l.apply(ctx, domain.TransactionWithdraw, amount, l.balance-amount, idempotencyKey)
}

// apply writes through to the store before committing to memory, so a failed
// store write leaves both the durable and the cached state untouched. Caller
// holds l.mu.
func (l *Ledger) apply(ctx context.Context, typ domain.TransactionType, amount, newBalance int64, idempotencyKey string) (string, error) {
	rec := &domain.TransactionRecord{
		ID:             newTransactionID(typ),
		Type:           typ,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		AccountName:    l.name,
		CreatedAt:      time.Now().UTC(),
	}

	if err := l.store.ApplyTransaction(ctx, l.name, newBalance, rec); err != nil {
		return "", fmt.Errorf("apply: %w", err)
	}

	l.balance = newBalance
	l.processed[idempotencyKey] = rec.ID
	return rec.ID, nil
}

func newTransactionID(typ domain.TransactionType) string {
	prefix := "D"
	if typ == domain.TransactionWithdraw {
		prefix = "W"
	}
	return prefix + "-" + uuid.NewString()
}
