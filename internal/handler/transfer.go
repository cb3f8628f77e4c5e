package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"moneymover/internal/domain"
	"moneymover/internal/logging"
	"moneymover/internal/saga"
)

type TransferHandler struct {
	coordinator *saga.Coordinator
}

func NewTransferHandler(coordinator *saga.Coordinator) *TransferHandler {
	return &TransferHandler{coordinator: coordinator}
}

type startTransferRequest struct {
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"reference_id"`
}

type approveRequest struct {
	Manager string `json:"manager"`
}

type transferStatusResponse struct {
	ReferenceID   string     `json:"reference_id"`
	Phase         saga.Phase `json:"phase"`
	WithdrawTxID  string     `json:"withdraw_tx_id,omitempty"`
	DepositTxID   string     `json:"deposit_tx_id,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ApprovedBy    string     `json:"approved_by,omitempty"`
}

func (h *TransferHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest)
		return
	}
	if req.ReferenceID == "" {
		req.ReferenceID = uuid.NewString()
	}

	state, err := h.coordinator.StartTransfer(r.Context(), domain.TransferRequest{
		Sender:      req.Sender,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusAccepted, statusResponse(state))
}

func (h *TransferHandler) Approve(w http.ResponseWriter, r *http.Request) {
	referenceID := mux.Vars(r)["referenceID"]

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest)
		return
	}
	if req.Manager == "" {
		RespondAppError(w, ErrInvalidRequest)
		return
	}

	if err := h.coordinator.Approve(r.Context(), referenceID, req.Manager); err != nil {
		RespondDomainError(w, err)
		return
	}

	logging.FromContext(r.Context()).Info("transfer approved", "reference_id", referenceID, "manager", req.Manager)
	RespondSuccess(w, http.StatusOK, map[string]string{"reference_id": referenceID})
}

func (h *TransferHandler) Status(w http.ResponseWriter, r *http.Request) {
	referenceID := mux.Vars(r)["referenceID"]

	state, err := h.coordinator.Status(r.Context(), referenceID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, statusResponse(state))
}

func statusResponse(state saga.State) transferStatusResponse {
	return transferStatusResponse{
		ReferenceID:   state.ReferenceID,
		Phase:         state.Phase,
		WithdrawTxID:  state.WithdrawTxID,
		DepositTxID:   state.DepositTxID,
		FailureReason: state.FailureReason,
		ApprovedBy:    state.ApprovedBy,
	}
}
