package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		terminal bool
	}{
		{"not found", ErrNotFound, true},
		{"insufficient funds", ErrInsufficientFunds, true},
		{"unavailable", ErrUnavailable, true},
		{"invalid amount", ErrInvalidAmount, true},
		{"wrapped terminal", fmt.Errorf("Withdraw: %w", ErrInsufficientFunds), true},
		{"transient", Transient(errors.New("connection reset")), false},
		{"wrapped transient", fmt.Errorf("Deposit: %w", Transient(errors.New("timeout"))), false},
		{"unknown error", errors.New("something odd"), false},
		{"transient-wrapped sentinel stays transient", Transient(ErrNotFound), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.terminal, IsTerminal(tc.err))
		})
	}
}

func TestTransient(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Transient(cause)

	require.ErrorIs(t, err, ErrTransient)
	require.ErrorIs(t, err, cause, "the cause stays inspectable through Unwrap")
	assert.Contains(t, err.Error(), "connection refused")

	assert.Nil(t, Transient(nil))
}
