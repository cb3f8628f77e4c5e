package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymover/internal/domain"
	"moneymover/internal/ledger"
	"moneymover/internal/saga"
	"moneymover/internal/testutil"
)

func TestAccountStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewAccountStore(db)
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		require.NoError(t, store.CreateAccount(ctx, "bob", 1000))

		account, err := store.FindAccount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "bob", account.Name)
		assert.Equal(t, int64(1000), account.Balance)
		assert.False(t, account.CreatedAt.IsZero())
	})

	t.Run("duplicate create", func(t *testing.T) {
		err := store.CreateAccount(ctx, "bob", 50)
		require.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("find unknown", func(t *testing.T) {
		_, err := store.FindAccount(ctx, "ghost")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("apply transaction", func(t *testing.T) {
		require.NoError(t, store.ApplyTransaction(ctx, "bob", 750, &domain.TransactionRecord{
			ID:             "W-1",
			Type:           domain.TransactionWithdraw,
			Amount:         250,
			IdempotencyKey: "withdrawal-for-r1",
			AccountName:    "bob",
			CreatedAt:      time.Now().UTC(),
		}))
		require.NoError(t, store.ApplyTransaction(ctx, "bob", 850, &domain.TransactionRecord{
			ID:             "D-1",
			Type:           domain.TransactionDeposit,
			Amount:         100,
			IdempotencyKey: "deposit-for-r2",
			AccountName:    "bob",
			CreatedAt:      time.Now().UTC(),
		}))

		account, err := store.FindAccount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(850), account.Balance)

		records, err := store.TransactionsByAccount(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "W-1", records[0].ID)
		assert.Equal(t, domain.TransactionWithdraw, records[0].Type)
		assert.Equal(t, "withdrawal-for-r1", records[0].IdempotencyKey)
		assert.Equal(t, "D-1", records[1].ID)
	})

	t.Run("apply transaction rolls back", func(t *testing.T) {
		// The second statement violates the transactions primary key, so the
		// balance update in the same database transaction must not survive.
		err := store.ApplyTransaction(ctx, "bob", 1, &domain.TransactionRecord{
			ID:             "W-1",
			Type:           domain.TransactionWithdraw,
			Amount:         849,
			IdempotencyKey: "withdrawal-for-r9",
			AccountName:    "bob",
			CreatedAt:      time.Now().UTC(),
		})
		require.Error(t, err)

		account, err := store.FindAccount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(850), account.Balance)

		records, err := store.TransactionsByAccount(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, records, 2)

		err = store.ApplyTransaction(ctx, "ghost", 10, &domain.TransactionRecord{
			ID: "D-9", Type: domain.TransactionDeposit, Amount: 10,
			IdempotencyKey: "k", AccountName: "ghost", CreatedAt: time.Now().UTC(),
		})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list names", func(t *testing.T) {
		require.NoError(t, store.CreateAccount(ctx, "alice", 0))

		names, err := store.ListAccountNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, names)
	})

	t.Run("delete cascades transactions", func(t *testing.T) {
		require.NoError(t, store.DeleteAccount(ctx, "bob"))

		_, err := store.FindAccount(ctx, "bob")
		require.ErrorIs(t, err, domain.ErrNotFound)

		records, err := store.TransactionsByAccount(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, records)

		err = store.DeleteAccount(ctx, "bob")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestTransferStateStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewTransferStateStore(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	state := &saga.State{
		ReferenceID: "r1",
		Sender:      "bob",
		Recipient:   "carol",
		Amount:      750,
		Phase:       saga.PhaseCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	t.Run("load unknown", func(t *testing.T) {
		_, err := store.Load(ctx, "r1")
		require.ErrorIs(t, err, domain.ErrTransferNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, state))

		got, err := store.Load(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, state.ReferenceID, got.ReferenceID)
		assert.Equal(t, state.Sender, got.Sender)
		assert.Equal(t, state.Recipient, got.Recipient)
		assert.Equal(t, state.Amount, got.Amount)
		assert.Equal(t, saga.PhaseCreated, got.Phase)
		assert.False(t, got.ApprovalGranted)
	})

	t.Run("save is an upsert", func(t *testing.T) {
		state.Phase = saga.PhaseDepositing
		state.ApprovalGranted = true
		state.ApprovedBy = "rita"
		state.WithdrawTxID = "W-1"
		state.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, store.Save(ctx, state))

		got, err := store.Load(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, saga.PhaseDepositing, got.Phase)
		assert.True(t, got.ApprovalGranted)
		assert.Equal(t, "rita", got.ApprovedBy)
		assert.Equal(t, "W-1", got.WithdrawTxID)
	})

	t.Run("active excludes terminal phases", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &saga.State{
			ReferenceID: "r2", Sender: "bob", Recipient: "carol", Amount: 10,
			Phase: saga.PhaseCompleted, CreatedAt: now, UpdatedAt: now,
		}))
		require.NoError(t, store.Save(ctx, &saga.State{
			ReferenceID: "r3", Sender: "bob", Recipient: "carol", Amount: 10,
			Phase: saga.PhaseFailed, FailureReason: "insufficient funds", CreatedAt: now, UpdatedAt: now,
		}))

		active, err := store.Active(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "r1", active[0].ReferenceID)
		assert.Equal(t, saga.PhaseDepositing, active[0].Phase)
	})
}

// The Postgres store must be interchangeable with the in-memory one, so the
// checkpoint contract is also exercised end to end against it.
func TestSagaResumeAgainstPostgres(t *testing.T) {
	db := testutil.SetupTestDB(t)
	checkpoints := NewTransferStateStore(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, checkpoints.Save(ctx, &saga.State{
		ReferenceID: "resume-pg", Sender: "bob", Recipient: "carol", Amount: 100,
		Phase: saga.PhaseDepositing, WithdrawTxID: "W-prev", CreatedAt: now, UpdatedAt: now,
	}))

	store := NewMemoryStore()
	require.NoError(t, store.CreateAccount(ctx, "carol", 0))
	// carol's account is enough: the withdraw leg is already checkpointed.
	registry := ledger.NewRegistry(store)

	c := saga.NewCoordinator(ledger.NewLocalClient(registry), checkpoints, 500, saga.RetryPolicy{
		InitialInterval: time.Millisecond, Multiplier: 2, MaxInterval: 5 * time.Millisecond,
	})
	defer c.Close()
	require.NoError(t, c.ResumeAll(ctx))

	require.Eventually(t, func() bool {
		st, err := c.Status(ctx, "resume-pg")
		return err == nil && st.Phase == saga.PhaseCompleted
	}, 5*time.Second, 5*time.Millisecond)

	st, err := c.Status(ctx, "resume-pg")
	require.NoError(t, err)
	assert.Equal(t, "W-prev", st.WithdrawTxID)
	assert.NotEmpty(t, st.DepositTxID)
}
