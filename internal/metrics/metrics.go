// Package metrics holds the prometheus collectors for the ledger engine.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
)

const namespace = "ledger"

var TransactionOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "transaction_ops_total",
	Help:      "Transaction create/rollback/refund operations by result",
}, []string{"op", "result"})

var BalanceRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "balance_cas_retries_total",
	Help:      "Units of work retried after losing a version compare-and-swap",
})

var LoginFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "login_failures_total",
	Help:      "Failed login attempts",
})

var Lockouts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "login_lockouts_total",
	Help:      "Login attempts rejected because the account is locked",
})

var InvitationRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "invitation_redemptions_total",
	Help:      "Invitation redemptions by result",
}, []string{"result"})

var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request latency",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// Result labels an outcome: "ok", the lower-cased error reason, or "internal".
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if e, ok := apperr.As(err); ok {
		return strings.ToLower(e.Reason)
	}
	return "internal"
}
