// Package metrics defines and registers the custom Prometheus metrics of the
// identity session engine. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity_session"

// ── Resolution metrics ────────────────────────────────────────────────────────

// ResolutionsTotal counts role resolutions.
// Label:
//   - source: collection the identity was resolved from ("admins", "users") or "principal"
var ResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolutions_total",
		Help:      "Total number of role resolutions, by the source that produced the identity.",
	},
	[]string{"source"},
)

// ResolutionStoreErrorsTotal counts record store lookups that failed during
// resolution and were treated as absent.
// Label:
//   - collection: "admins" or "users"
var ResolutionStoreErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolution_store_errors_total",
		Help:      "Total number of failed record store lookups tolerated during resolution.",
	},
	[]string{"collection"},
)

// ResolutionDuration measures a full resolution including both lookups.
var ResolutionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "resolution_duration_seconds",
		Help:      "Duration of role resolution against the record store.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// ObserverEventsTotal counts provider state-change callbacks.
// Label:
//   - outcome: "skipped_signup", "signed_out", "resolved", "stale"
var ObserverEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "observer_events_total",
		Help:      "Total number of identity provider state changes, by outcome.",
	},
	[]string{"outcome"},
)

// OperationsTotal counts session operations.
// Labels:
//   - operation: "sign_up", "sign_in_password", "sign_in_oauth", "sign_out", "password_reset", "patch_profile", "refresh"
//   - result: "ok" or the classified error code
var OperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of session operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// SignedIn is 1 while an identity is published, 0 otherwise.
var SignedIn = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "signed_in",
		Help:      "Whether an identity is currently published (1) or not (0).",
	},
)
