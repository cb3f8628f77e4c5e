package saga

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymover/internal/domain"
)

func TestResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	checkpoints := NewMemoryCheckpointer()

	// First process: the deposit leg never succeeds, so the saga parks in the
	// depositing phase with the withdraw already checkpointed.
	crashed := &fakeLedger{
		depositFn: func(int) error { return domain.Transient(fmt.Errorf("recipient service down")) },
	}
	c1 := NewCoordinator(crashed, checkpoints, testThreshold, testRetryPolicy())

	_, err := c1.StartTransfer(ctx, domain.TransferRequest{
		Sender: "bob", Recipient: "carol", Amount: 100, ReferenceID: "resume-1",
	})
	require.NoError(t, err)
	waitForPhase(t, c1, "resume-1", PhaseDepositing)
	c1.Close()

	require.Len(t, crashed.withdrawCalls(), 1)
	require.NotEmpty(t, crashed.depositCalls())

	// Second process: resumes from the checkpoint and finishes the deposit leg
	// without re-running the withdraw.
	healthy := &fakeLedger{}
	c2 := NewCoordinator(healthy, checkpoints, testThreshold, testRetryPolicy())
	defer c2.Close()
	require.NoError(t, c2.ResumeAll(ctx))

	st := waitForPhase(t, c2, "resume-1", PhaseCompleted)
	assert.Equal(t, "W-fake-1", st.WithdrawTxID, "the original withdraw tx id survives the restart")

	assert.Empty(t, healthy.withdrawCalls(), "a resumed saga must not withdraw again")
	require.Equal(t, []ledgerCall{{"carol", 100, "deposit-for-resume-1"}}, healthy.depositCalls())
}

func TestApproveAfterRestart(t *testing.T) {
	ctx := context.Background()
	checkpoints := NewMemoryCheckpointer()

	c1 := NewCoordinator(&fakeLedger{}, checkpoints, testThreshold, testRetryPolicy())
	_, err := c1.StartTransfer(ctx, domain.TransferRequest{
		Sender: "bob", Recipient: "carol", Amount: 900, ReferenceID: "resume-2",
	})
	require.NoError(t, err)
	waitForPhase(t, c1, "resume-2", PhaseAwaitingApproval)
	c1.Close()

	fake := &fakeLedger{}
	c2 := NewCoordinator(fake, checkpoints, testThreshold, testRetryPolicy())
	defer c2.Close()
	require.NoError(t, c2.ResumeAll(ctx))

	st, err := c2.Status(ctx, "resume-2")
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingApproval, st.Phase, "the hold survives the restart")

	require.NoError(t, c2.Approve(ctx, "resume-2", "rita"))
	st = waitForPhase(t, c2, "resume-2", PhaseCompleted)
	assert.Equal(t, "rita", st.ApprovedBy)
	assert.Len(t, fake.withdrawCalls(), 1)
}

func TestResumeAllSkipsTerminalTransfers(t *testing.T) {
	ctx := context.Background()
	checkpoints := NewMemoryCheckpointer()
	require.NoError(t, checkpoints.Save(ctx, &State{ReferenceID: "done", Phase: PhaseCompleted}))
	require.NoError(t, checkpoints.Save(ctx, &State{ReferenceID: "broken", Phase: PhaseFailed}))

	fake := &fakeLedger{}
	c := NewCoordinator(fake, checkpoints, testThreshold, testRetryPolicy())
	defer c.Close()
	require.NoError(t, c.ResumeAll(ctx))

	assert.Empty(t, fake.withdrawCalls())
	assert.Empty(t, fake.depositCalls())
}

func TestStartTransferValidation(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(&fakeLedger{}, NewMemoryCheckpointer(), testThreshold, testRetryPolicy())
	defer c.Close()

	tests := []struct {
		name    string
		req     domain.TransferRequest
		wantErr error
	}{
		{"missing sender", domain.TransferRequest{Recipient: "carol", Amount: 10, ReferenceID: "v1"}, domain.ErrInvalidName},
		{"missing recipient", domain.TransferRequest{Sender: "bob", Amount: 10, ReferenceID: "v2"}, domain.ErrInvalidName},
		{"missing reference", domain.TransferRequest{Sender: "bob", Recipient: "carol", Amount: 10}, domain.ErrInvalidName},
		{"zero amount", domain.TransferRequest{Sender: "bob", Recipient: "carol", Amount: 0, ReferenceID: "v3"}, domain.ErrInvalidAmount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.StartTransfer(ctx, tc.req)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestStatusUnknownTransfer(t *testing.T) {
	c := NewCoordinator(&fakeLedger{}, NewMemoryCheckpointer(), testThreshold, testRetryPolicy())
	defer c.Close()

	_, err := c.Status(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrTransferNotFound)

	err = c.Approve(context.Background(), "nope", "rita")
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestApproveNotRunningTransfer(t *testing.T) {
	ctx := context.Background()
	checkpoints := NewMemoryCheckpointer()
	require.NoError(t, checkpoints.Save(ctx, &State{
		ReferenceID: "parked", Sender: "bob", Recipient: "carol", Amount: 900,
		Phase: PhaseAwaitingApproval,
	}))

	// The coordinator has not resumed the checkpoint, so the signal has no
	// saga to land on. That is distinct from the transfer not existing.
	c := NewCoordinator(&fakeLedger{}, checkpoints, testThreshold, testRetryPolicy())
	defer c.Close()

	err := c.Approve(ctx, "parked", "rita")
	require.ErrorIs(t, err, domain.ErrTransferNotRunning)
	assert.NotErrorIs(t, err, domain.ErrTransferNotFound)

	// Once resumed, the same signal goes through.
	require.NoError(t, c.ResumeAll(ctx))
	require.NoError(t, c.Approve(ctx, "parked", "rita"))
	st := waitForPhase(t, c, "parked", PhaseCompleted)
	assert.Equal(t, "rita", st.ApprovedBy)
}

func TestCompletedTransferStatusOutlivesSaga(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(&fakeLedger{}, NewMemoryCheckpointer(), testThreshold, testRetryPolicy())
	defer c.Close()

	_, err := c.StartTransfer(ctx, domain.TransferRequest{
		Sender: "bob", Recipient: "carol", Amount: 50, ReferenceID: "keep",
	})
	require.NoError(t, err)
	waitForPhase(t, c, "keep", PhaseCompleted)

	// Attaching to a finished transfer returns its final state and does not
	// start a second saga.
	st, err := c.StartTransfer(ctx, domain.TransferRequest{
		Sender: "bob", Recipient: "carol", Amount: 50, ReferenceID: "keep",
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, st.Phase)
}
