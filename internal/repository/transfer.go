package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"moneymover/internal/domain"
	"moneymover/internal/saga"
)

// TransferStateStore persists saga checkpoints in Postgres, satisfying the
// saga's Checkpointer contract.
type TransferStateStore struct {
	db *sql.DB
}

func NewTransferStateStore(db *sql.DB) *TransferStateStore {
	return &TransferStateStore{db: db}
}

const transferStateColumns = `reference_id, sender, recipient, amount, phase,
	approval_granted, approved_by, withdraw_tx_id, deposit_tx_id, failure_reason,
	created_at, updated_at`

func (s *TransferStateStore) Save(ctx context.Context, state *saga.State) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfer_states (`+transferStateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (reference_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			approval_granted = EXCLUDED.approval_granted,
			approved_by = EXCLUDED.approved_by,
			withdraw_tx_id = EXCLUDED.withdraw_tx_id,
			deposit_tx_id = EXCLUDED.deposit_tx_id,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at`,
		state.ReferenceID, state.Sender, state.Recipient, state.Amount, state.Phase,
		state.ApprovalGranted, state.ApprovedBy, state.WithdrawTxID, state.DepositTxID,
		state.FailureReason, state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

func (s *TransferStateStore) Load(ctx context.Context, referenceID string) (*saga.State, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transferStateColumns+` FROM transfer_states WHERE reference_id = $1`,
		referenceID,
	)
	st, err := scanTransferState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Load: %q: %w", referenceID, domain.ErrTransferNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return st, nil
}

func (s *TransferStateStore) Active(ctx context.Context) ([]saga.State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transferStateColumns+` FROM transfer_states
		WHERE phase NOT IN ($1, $2) ORDER BY created_at`,
		saga.PhaseCompleted, saga.PhaseFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("Active: %w", err)
	}
	defer rows.Close()

	var states []saga.State
	for rows.Next() {
		st, err := scanTransferState(rows)
		if err != nil {
			return nil, fmt.Errorf("Active: scan: %w", err)
		}
		states = append(states, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Active: rows: %w", err)
	}
	return states, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransferState(s scanner) (*saga.State, error) {
	var st saga.State
	err := s.Scan(
		&st.ReferenceID, &st.Sender, &st.Recipient, &st.Amount, &st.Phase,
		&st.ApprovalGranted, &st.ApprovedBy, &st.WithdrawTxID, &st.DepositTxID,
		&st.FailureReason, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
