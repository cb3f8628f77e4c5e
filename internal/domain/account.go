package domain

import "time"

// Account is the persisted record of a named account. The balance is in
// integer currency units and never drops below zero.
type Account struct {
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
)

// TransactionRecord is one applied ledger mutation. Records are append-only;
// they are never updated or deleted, and the idempotency key is unique per
// account.
type TransactionRecord struct {
	ID             string          `json:"transaction_id"`
	Type           TransactionType `json:"type"`
	Amount         int64           `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
	AccountName    string          `json:"account_name"`
	CreatedAt      time.Time       `json:"created_at"`
}
