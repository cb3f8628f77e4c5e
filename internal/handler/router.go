package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moneymover/internal/ledger"
	"moneymover/internal/middleware"
	"moneymover/internal/saga"
)

// NewRouter wires the full HTTP surface: health and metrics at the root, the
// account and transfer APIs under /api/v1.
func NewRouter(registry *ledger.Registry, coordinator *saga.Coordinator) *mux.Router {
	accounts := NewAccountHandler(registry)
	transfers := NewTransferHandler(coordinator)

	r := mux.NewRouter()
	r.Use(middleware.Tracing, middleware.Metrics, middleware.Logging, middleware.Recovery)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/accounts", accounts.Create).Methods(http.MethodPost)
	api.HandleFunc("/accounts", accounts.List).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{name}", accounts.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{name}/balance", accounts.Balance).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{name}/deposit", accounts.Deposit).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{name}/withdraw", accounts.Withdraw).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{name}/availability", accounts.SetAvailability).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{name}/availability", accounts.GetAvailability).Methods(http.MethodGet)
	api.HandleFunc("/transfers", transfers.Start).Methods(http.MethodPost)
	api.HandleFunc("/transfers/{referenceID}", transfers.Status).Methods(http.MethodGet)
	api.HandleFunc("/transfers/{referenceID}/approve", transfers.Approve).Methods(http.MethodPost)

	return r
}
