package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"moneymover/internal/domain"
	"moneymover/internal/metrics"
)

// Coordinator owns the live saga instances. It is the in-process stand-in for
// a durable execution substrate: each saga runs on its own goroutine, state is
// persisted through the Checkpointer after every transition, and ResumeAll
// picks non-terminal sagas back up after a restart.
type Coordinator struct {
	ledger      RemoteLedger
	checkpoints Checkpointer
	threshold   int64
	retry       RetryPolicy

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	live map[string]*Saga
}

func NewCoordinator(ledger RemoteLedger, checkpoints Checkpointer, approvalThreshold int64, retry RetryPolicy) *Coordinator {
	runCtx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ledger:      ledger,
		checkpoints: checkpoints,
		threshold:   approvalThreshold,
		retry:       retry,
		runCtx:      runCtx,
		cancel:      cancel,
		live:        make(map[string]*Saga),
	}
}

// StartTransfer creates and runs a saga for the request. A repeated request
// with the same reference id attaches to the existing transfer: the current
// state is returned and no second saga starts.
func (c *Coordinator) StartTransfer(ctx context.Context, req domain.TransferRequest) (State, error) {
	if err := req.Validate(); err != nil {
		return State{}, fmt.Errorf("StartTransfer: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.live[req.ReferenceID]; ok {
		return s.State(), nil
	}

	if st, err := c.checkpoints.Load(ctx, req.ReferenceID); err == nil {
		if st.Phase.Terminal() {
			return *st, nil
		}
		// Checkpointed but not running: a previous process crashed mid-flight.
		return c.spawnLocked(*st), nil
	} else if !errors.Is(err, domain.ErrTransferNotFound) {
		return State{}, fmt.Errorf("StartTransfer: %w", err)
	}

	now := time.Now().UTC()
	state := State{
		ReferenceID: req.ReferenceID,
		Sender:      req.Sender,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
		Phase:       PhaseCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.checkpoints.Save(ctx, &state); err != nil {
		return State{}, fmt.Errorf("StartTransfer: checkpoint: %w", err)
	}

	slog.Info("transfer started",
		"reference_id", state.ReferenceID,
		"sender", state.Sender,
		"recipient", state.Recipient,
		"amount", state.Amount,
	)
	return c.spawnLocked(state), nil
}

// Approve signals manager approval for a suspended transfer. Repeated
// approvals and approvals for already-running transfers are no-ops.
func (c *Coordinator) Approve(ctx context.Context, referenceID, managerName string) error {
	c.mu.Lock()
	s, ok := c.live[referenceID]
	c.mu.Unlock()
	if ok {
		s.Approve(managerName)
		return nil
	}

	st, err := c.checkpoints.Load(ctx, referenceID)
	if err != nil {
		return fmt.Errorf("Approve: %w", err)
	}
	if st.Phase.Terminal() || st.ApprovalGranted {
		return nil
	}
	// Non-terminal checkpoint with no live saga: the caller raced a restart.
	// ResumeAll re-parks these on startup; the signal must be re-sent then.
	return fmt.Errorf("Approve: %q: %w", referenceID, domain.ErrTransferNotRunning)
}

// Status reports the transfer's last durable state.
func (c *Coordinator) Status(ctx context.Context, referenceID string) (State, error) {
	c.mu.Lock()
	s, ok := c.live[referenceID]
	c.mu.Unlock()
	if ok {
		return s.State(), nil
	}

	st, err := c.checkpoints.Load(ctx, referenceID)
	if err != nil {
		return State{}, fmt.Errorf("Status: %w", err)
	}
	return *st, nil
}

// ResumeAll restarts every non-terminal saga from its last checkpoint. Called
// once at process startup, before traffic is admitted.
func (c *Coordinator) ResumeAll(ctx context.Context) error {
	states, err := c.checkpoints.Active(ctx)
	if err != nil {
		return fmt.Errorf("ResumeAll: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range states {
		if _, ok := c.live[st.ReferenceID]; ok {
			continue
		}
		slog.Info("resuming transfer", "reference_id", st.ReferenceID, "phase", st.Phase)
		c.spawnLocked(st)
	}
	return nil
}

// Close stops all running sagas and waits for them to park. In-flight work is
// safe to abandon: the next process resumes from the checkpoints.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// spawnLocked registers and runs a saga. Caller holds c.mu.
func (c *Coordinator) spawnLocked(state State) State {
	s := newSaga(state, c.ledger, c.checkpoints, c.threshold, c.retry)
	c.live[state.ReferenceID] = s

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		metrics.TransfersInFlight.Inc()
		defer metrics.TransfersInFlight.Dec()

		s.Run(c.runCtx)

		c.mu.Lock()
		delete(c.live, state.ReferenceID)
		c.mu.Unlock()
	}()

	return s.State()
}
