package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneymover_ledger_operations_total",
		Help: "Ledger operations by type and result",
	}, []string{"op", "result"})

	LedgerReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneymover_ledger_idempotent_replays_total",
		Help: "Mutations absorbed by the idempotency log",
	})

	SagaTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneymover_saga_transitions_total",
		Help: "Saga phase transitions",
	}, []string{"phase"})

	SagaRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneymover_saga_retries_total",
		Help: "Transient-failure retries by phase",
	}, []string{"phase"})

	SagaFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneymover_saga_failures_total",
		Help: "Sagas ended in the failed phase, by failing phase",
	}, []string{"phase"})

	TransfersInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moneymover_transfers_in_flight",
		Help: "Sagas that have started and not yet reached a terminal phase",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneymover_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
)
