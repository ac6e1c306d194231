package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var LoanRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "biblioteca_loan_requests_total",
	Help: "Loan requests by outcome.",
}, []string{"outcome"})

var ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "biblioteca_reservations_created_total",
	Help: "Reservations appended to the waitlist.",
})

var LoanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "biblioteca_loan_transitions_total",
	Help: "Loan and reservation status transitions.",
}, []string{"to"})

var FavoriteChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "biblioteca_favorite_changes_total",
	Help: "Favorites ledger operations by action and result.",
}, []string{"action", "result"})

var PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "biblioteca_persist_failures_total",
	Help: "Failed writes of a ledger snapshot.",
}, []string{"ledger"})

var CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "biblioteca_catalog_requests_total",
	Help: "Catalog lookups by operation and result.",
}, []string{"op", "result"})

var BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "biblioteca_circuit_breaker_state",
	Help: "Circuit breaker state per dependency (0=closed, 1=open, 2=half-open).",
}, []string{"dependency"})
