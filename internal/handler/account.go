package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"moneymover/internal/ledger"
	"moneymover/internal/logging"
)

type AccountHandler struct {
	registry *ledger.Registry
}

func NewAccountHandler(registry *ledger.Registry) *AccountHandler {
	return &AccountHandler{registry: registry}
}

type createAccountRequest struct {
	Name           string `json:"name"`
	InitialBalance int64  `json:"initial_balance"`
}

type operationRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest)
		return
	}

	if err := h.registry.Create(r.Context(), req.Name, req.InitialBalance); err != nil {
		RespondDomainError(w, err)
		return
	}

	logging.FromContext(r.Context()).Info("account created", "account", req.Name, "initial_balance", req.InitialBalance)
	RespondSuccess(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.registry.Delete(r.Context(), name); err != nil {
		RespondDomainError(w, err)
		return
	}

	logging.FromContext(r.Context()).Info("account deleted", "account", name)
	RespondSuccess(w, http.StatusOK, map[string]string{"name": name})
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.registry.ListNames(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	RespondSuccess(w, http.StatusOK, map[string][]string{"accounts": names})
}

func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	balance, err := h.registry.Balance(r.Context(), name)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.operation(w, r, h.registry.Deposit)
}

func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.operation(w, r, h.registry.Withdraw)
}

func (h *AccountHandler) operation(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, name string, amount int64, idempotencyKey string) (string, error)) {
	name := mux.Vars(r)["name"]

	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest)
		return
	}
	if req.IdempotencyKey == "" {
		RespondAppError(w, ErrInvalidRequest)
		return
	}

	txID, err := apply(r.Context(), name, req.Amount, req.IdempotencyKey)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]string{"transaction_id": txID})
}

func (h *AccountHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest)
		return
	}

	h.registry.SetAvailability(name, req.Available)
	logging.FromContext(r.Context()).Info("account availability changed", "account", name, "available", req.Available)
	RespondSuccess(w, http.StatusOK, map[string]bool{"available": req.Available})
}

func (h *AccountHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	RespondSuccess(w, http.StatusOK, map[string]bool{"available": h.registry.IsAvailable(name)})
}
