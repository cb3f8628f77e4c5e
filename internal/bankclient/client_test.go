package bankclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymover/internal/domain"
	"moneymover/internal/handler"
	"moneymover/internal/ledger"
	"moneymover/internal/repository"
	"moneymover/internal/saga"
)

var _ saga.RemoteLedger = (*Client)(nil)

func successBody(data any) []byte {
	b, _ := json.Marshal(map[string]any{"success": true, "data": data})
	return b
}

func errorBody(code, message string) []byte {
	b, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
	return b
}

func TestWithdrawSuccess(t *testing.T) {
	var gotPath string
	var gotReq operationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write(successBody(map[string]string{"transaction_id": "W-abc"}))
	}))
	defer srv.Close()

	id, err := New(srv.URL).Withdraw(context.Background(), "bob", 100, "withdrawal-for-r1")
	require.NoError(t, err)
	assert.Equal(t, "W-abc", id)
	assert.Equal(t, "/api/v1/accounts/bob/withdraw", gotPath)
	assert.Equal(t, operationRequest{Amount: 100, IdempotencyKey: "withdrawal-for-r1"}, gotReq)
}

func TestDepositSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/carol/deposit", r.URL.Path)
		w.Write(successBody(map[string]string{"transaction_id": "D-abc"}))
	}))
	defer srv.Close()

	id, err := New(srv.URL).Deposit(context.Background(), "carol", 100, "deposit-for-r1")
	require.NoError(t, err)
	assert.Equal(t, "D-abc", id)
}

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/accounts/bob/balance", r.URL.Path)
		w.Write(successBody(map[string]any{"name": "bob", "balance": 1500}))
	}))
	defer srv.Close()

	balance, err := New(srv.URL).Balance(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)
}

func TestErrorCodeClassification(t *testing.T) {
	tests := []struct {
		code     string
		status   int
		wantErr  error
		terminal bool
	}{
		{"ACCOUNT_NOT_FOUND", http.StatusNotFound, domain.ErrNotFound, true},
		{"INSUFFICIENT_FUNDS", http.StatusUnprocessableEntity, domain.ErrInsufficientFunds, true},
		{"ACCOUNT_UNAVAILABLE", http.StatusServiceUnavailable, domain.ErrUnavailable, true},
		{"INVALID_AMOUNT", http.StatusBadRequest, domain.ErrInvalidAmount, true},
		{"SOMETHING_NEW", http.StatusTeapot, domain.ErrTransient, false},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write(errorBody(tc.code, "boom"))
			}))
			defer srv.Close()

			_, err := New(srv.URL).Withdraw(context.Background(), "bob", 100, "k")
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.terminal, domain.IsTerminal(err))
		})
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := New(srv.URL).Withdraw(context.Background(), "bob", 100, "k")
	require.ErrorIs(t, err, domain.ErrTransient)
	assert.False(t, domain.IsTerminal(err))
}

// The client is the transfer coordinator's ledger boundary in the split
// topology, so the whole saga is driven through it against a real ledger
// service here.
func TestCoordinatorDrivesSagaOverClient(t *testing.T) {
	ctx := context.Background()

	registry := ledger.NewRegistry(repository.NewMemoryStore())
	require.NoError(t, registry.Create(ctx, "bob", 1000))
	require.NoError(t, registry.Create(ctx, "carol", 0))

	ledgerCoord := saga.NewCoordinator(
		ledger.NewLocalClient(registry), saga.NewMemoryCheckpointer(), 500, saga.DefaultRetryPolicy(),
	)
	defer ledgerCoord.Close()
	ledgerSrv := httptest.NewServer(handler.NewRouter(registry, ledgerCoord))
	defer ledgerSrv.Close()

	c := saga.NewCoordinator(
		New(ledgerSrv.URL),
		saga.NewMemoryCheckpointer(),
		500,
		saga.RetryPolicy{InitialInterval: time.Millisecond, Multiplier: 2, MaxInterval: 5 * time.Millisecond},
	)
	defer c.Close()

	_, err := c.StartTransfer(ctx, domain.TransferRequest{
		Sender: "bob", Recipient: "carol", Amount: 100, ReferenceID: "remote-1",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := c.Status(ctx, "remote-1")
		return err == nil && st.Phase == saga.PhaseCompleted
	}, 2*time.Second, 5*time.Millisecond)

	balance, err := New(ledgerSrv.URL).Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)
	balance, err = New(ledgerSrv.URL).Balance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestMalformedResponseIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream error</html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Deposit(context.Background(), "carol", 100, "k")
	require.ErrorIs(t, err, domain.ErrTransient)
}
