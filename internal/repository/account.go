package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moneymover/internal/domain"
)

// AccountStore is the Postgres-backed account store.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) FindAccount(ctx context.Context, name string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT name, balance, created_at FROM accounts WHERE name = $1`, name,
	).Scan(&a.Name, &a.Balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("FindAccount: %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("FindAccount: %w", err)
	}
	return &a, nil
}

func (s *AccountStore) CreateAccount(ctx context.Context, name string, initialBalance int64) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, balance) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, initialBalance,
	)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("CreateAccount: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("CreateAccount: %q: %w", name, domain.ErrAlreadyExists)
	}
	return nil
}

func (s *AccountStore) DeleteAccount(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteAccount: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("DeleteAccount: %q: %w", name, domain.ErrNotFound)
	}
	return nil
}

// ApplyTransaction pairs the balance update with the transaction-record insert
// in a single database transaction. A crash between the two statements rolls
// both back, so the idempotency log never goes out of step with the balance.
func (s *AccountStore) ApplyTransaction(ctx context.Context, name string, newBalance int64, record *domain.TransactionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ApplyTransaction: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1 WHERE name = $2`, newBalance, name,
	)
	if err != nil {
		return fmt.Errorf("ApplyTransaction: update balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ApplyTransaction: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ApplyTransaction: %q: %w", name, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (transaction_id, account_name, type, amount, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.AccountName, record.Type, record.Amount, record.IdempotencyKey, record.CreatedAt,
	); err != nil {
		return fmt.Errorf("ApplyTransaction: log transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ApplyTransaction: commit: %w", err)
	}
	return nil
}

func (s *AccountStore) TransactionsByAccount(ctx context.Context, name string) ([]domain.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT transaction_id, account_name, type, amount, idempotency_key, created_at
		FROM transactions WHERE account_name = $1 ORDER BY created_at`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("TransactionsByAccount: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var r domain.TransactionRecord
		if err := rows.Scan(&r.ID, &r.AccountName, &r.Type, &r.Amount, &r.IdempotencyKey, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("TransactionsByAccount: scan: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TransactionsByAccount: rows: %w", err)
	}
	return records, nil
}

func (s *AccountStore) ListAccountNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ListAccountNames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ListAccountNames: scan: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccountNames: rows: %w", err)
	}
	return names, nil
}
