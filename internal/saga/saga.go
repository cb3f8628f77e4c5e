package saga

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"moneymover/internal/domain"
	"moneymover/internal/metrics"
)

// Phase is the saga's position in the transfer state machine.
type Phase string

const (
	PhaseCreated          Phase = "created"
	PhaseAwaitingApproval Phase = "awaiting_approval"
	PhaseWithdrawing      Phase = "withdrawing"
	PhaseDepositing       Phase = "depositing"
	PhaseCompleted        Phase = "completed"
	PhaseFailed           Phase = "failed"
)

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// State is the durable record of one transfer saga. It is mutated only by the
// saga's transition function and checkpointed after every phase change, so a
// restarted process resumes from the last completed phase.
type State struct {
	ReferenceID     string    `json:"reference_id"`
	Sender          string    `json:"sender"`
	Recipient       string    `json:"recipient"`
	Amount          int64     `json:"amount"`
	Phase           Phase     `json:"phase"`
	ApprovalGranted bool      `json:"approval_granted"`
	ApprovedBy      string    `json:"approved_by,omitempty"`
	WithdrawTxID    string    `json:"withdraw_tx_id,omitempty"`
	DepositTxID     string    `json:"deposit_tx_id,omitempty"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RemoteLedger is the boundary the saga drives account operations through.
// Implementations classify failures into the domain sentinel errors: NotFound,
// InsufficientFunds and Unavailable are terminal; everything else must be
// wrapped transient so the saga retries it.
type RemoteLedger interface {
	Withdraw(ctx context.Context, account string, amount int64, idempotencyKey string) (string, error)
	Deposit(ctx context.Context, account string, amount int64, idempotencyKey string) (string, error)
}

// RetryPolicy bounds the exponential backoff applied to transient failures.
// There is no attempt cap: retries continue until the call succeeds, turns
// terminal, or the process shuts down.
type RetryPolicy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     60 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

// Phase keys are deterministic functions of the transfer identity, not random:
// a duplicate invocation caused by a crash-and-resume race is absorbed by the
// ledger's idempotency log instead of double-debiting.
func withdrawalKey(referenceID string) string { return "withdrawal-for-" + referenceID }

func depositKey(referenceID string) string { return "deposit-for-" + referenceID }

// Saga sequences withdraw-then-deposit for one transfer. At most one live
// instance exists per reference id; the coordinator enforces that.
type Saga struct {
	ledger      RemoteLedger
	checkpoints Checkpointer
	threshold   int64
	retry       RetryPolicy

	mu        sync.Mutex
	state     State
	approvals chan string
}

func newSaga(state State, ledger RemoteLedger, checkpoints Checkpointer, threshold int64, retry RetryPolicy) *Saga {
	return &Saga{
		ledger:      ledger,
		checkpoints: checkpoints,
		threshold:   threshold,
		retry:       retry,
		state:       state,
		approvals:   make(chan string, 1),
	}
}

// State returns a snapshot of the saga's current state.
func (s *Saga) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Approve delivers the manager's approval signal. Signals after approval has
// been granted, and signals to a terminal saga, are no-ops.
func (s *Saga) Approve(managerName string) {
	s.mu.Lock()
	granted := s.state.ApprovalGranted || s.state.Phase.Terminal()
	s.mu.Unlock()
	if granted {
		return
	}
	select {
	case s.approvals <- managerName:
	default:
	}
}

// Run drives the state machine to a terminal phase. It returns early only when
// ctx is canceled; the last checkpoint then holds the resume point.
func (s *Saga) Run(ctx context.Context) {
	log := slog.Default().With("reference_id", s.state.ReferenceID)

	for {
		var err error
		switch phase := s.State().Phase; phase {
		case PhaseCreated:
			err = s.route(ctx, log)
		case PhaseAwaitingApproval:
			err = s.awaitApproval(ctx, log)
		case PhaseWithdrawing:
			err = s.withdraw(ctx, log)
		case PhaseDepositing:
			err = s.deposit(ctx, log)
		case PhaseCompleted:
			st := s.State()
			log.Info("transfer completed",
				"withdraw_tx_id", st.WithdrawTxID,
				"deposit_tx_id", st.DepositTxID,
			)
			return
		case PhaseFailed:
			return
		default:
			log.Error("unknown saga phase", "phase", phase)
			return
		}
		if err != nil {
			log.Warn("saga interrupted", "phase", s.State().Phase, "error", err)
			return
		}
	}
}

func (s *Saga) route(ctx context.Context, log *slog.Logger) error {
	if s.State().Amount > s.threshold {
		log.Info("transfer on hold awaiting manager approval", "amount", s.State().Amount, "threshold", s.threshold)
		return s.transition(ctx, func(st *State) {
			st.Phase = PhaseAwaitingApproval
		})
	}
	return s.transition(ctx, func(st *State) {
		st.Phase = PhaseWithdrawing
	})
}

// awaitApproval is the saga's only suspension point. The wait is unbounded;
// the only way forward is an approval signal.
func (s *Saga) awaitApproval(ctx context.Context, log *slog.Logger) error {
	select {
	case manager := <-s.approvals:
		log.Info("transfer approved", "manager", manager)
		return s.transition(ctx, func(st *State) {
			st.ApprovalGranted = true
			st.ApprovedBy = manager
			st.Phase = PhaseWithdrawing
		})
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saga) withdraw(ctx context.Context, log *slog.Logger) error {
	st := s.State()
	txID, err := s.call(ctx, log, PhaseWithdrawing, func() (string, error) {
		return s.ledger.Withdraw(ctx, st.Sender, st.Amount, withdrawalKey(st.ReferenceID))
	})
	if err != nil {
		if domain.IsTerminal(err) {
			log.Error("withdraw failed", "sender", st.Sender, "error", err)
			return s.fail(ctx, PhaseWithdrawing, err)
		}
		return err
	}
	return s.transition(ctx, func(st *State) {
		st.WithdrawTxID = txID
		st.Phase = PhaseDepositing
	})
}

func (s *Saga) deposit(ctx context.Context, log *slog.Logger) error {
	st := s.State()
	txID, err := s.call(ctx, log, PhaseDepositing, func() (string, error) {
		return s.ledger.Deposit(ctx, st.Recipient, st.Amount, depositKey(st.ReferenceID))
	})
	if err != nil {
		if domain.IsTerminal(err) {
			// There is no automatic refund: the withdraw already happened and
			// the sender's funds stay debited until an operator intervenes.
			log.Error("deposit failed after successful withdraw, sender remains debited",
				"sender", st.Sender,
				"recipient", st.Recipient,
				"withdraw_tx_id", st.WithdrawTxID,
				"error", err,
			)
			return s.fail(ctx, PhaseDepositing, err)
		}
		return err
	}
	return s.transition(ctx, func(st *State) {
		st.DepositTxID = txID
		st.Phase = PhaseCompleted
	})
}

// call invokes op under the retry policy. Terminal business failures abort the
// retry loop immediately; everything else retries with capped exponential
// backoff until ctx is canceled.
func (s *Saga) call(ctx context.Context, log *slog.Logger, phase Phase, op func() (string, error)) (string, error) {
	var txID string
	err := backoff.RetryNotify(func() error {
		id, err := op()
		if err != nil {
			if domain.IsTerminal(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		txID = id
		return nil
	}, s.retry.backOff(ctx), func(err error, next time.Duration) {
		metrics.SagaRetries.WithLabelValues(string(phase)).Inc()
		log.Warn("retrying after transient failure", "phase", phase, "next_attempt_in", next, "error", err)
	})
	if err != nil {
		return "", err
	}
	return txID, nil
}

func (s *Saga) fail(ctx context.Context, phase Phase, cause error) error {
	metrics.SagaFailures.WithLabelValues(string(phase)).Inc()
	return s.transition(ctx, func(st *State) {
		st.Phase = PhaseFailed
		st.FailureReason = cause.Error()
	})
}

// transition applies mutate to a copy of the state, checkpoints it, and only
// then commits it in memory: further work never proceeds ahead of the durable
// record.
func (s *Saga) transition(ctx context.Context, mutate func(*State)) error {
	s.mu.Lock()
	next := s.state
	s.mu.Unlock()

	mutate(&next)
	next.UpdatedAt = time.Now().UTC()

	if err := s.checkpoints.Save(ctx, &next); err != nil {
		return fmt.Errorf("transition: checkpoint: %w", err)
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	metrics.SagaTransitions.WithLabelValues(string(next.Phase)).Inc()
	return nil
}
