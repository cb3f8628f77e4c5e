package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

// The codes double as the wire-level failure classification: bankclient maps
// them back onto the domain sentinel errors on the consuming side.
var (
	ErrInvalidRequest = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrInternalError  = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrAccountNotFound    = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrAccountExists      = &AppError{http.StatusConflict, "ACCOUNT_ALREADY_EXISTS", "Account already exists"}
	ErrInsufficientFunds  = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAccountUnavailable = &AppError{http.StatusServiceUnavailable, "ACCOUNT_UNAVAILABLE", "Account is unavailable"}
	ErrInvalidAmount      = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be at least 1"}
	ErrInvalidName        = &AppError{http.StatusBadRequest, "INVALID_NAME", "Account name must not be empty"}
	ErrInvalidBalance     = &AppError{http.StatusBadRequest, "INVALID_BALANCE", "Initial balance must not be negative"}

	ErrTransferNotFound   = &AppError{http.StatusNotFound, "TRANSFER_NOT_FOUND", "Transfer not found"}
	ErrTransferNotRunning = &AppError{http.StatusConflict, "TRANSFER_NOT_RUNNING", "Transfer exists but is not running; retry once it has been resumed"}
)
