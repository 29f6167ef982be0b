// Package metrics exposes the validator service's Prometheus counters and
// one histogram: matches by phase, mint RPC latency/error counts,
// invalidation reasons, and loot issued. Observability is ambient infrastructure the protocol's
// Non-goals do not exclude (they exclude matchmaking, ratings, payments,
// and cross-restart durability, not metrics).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the validator emits, registered against its
// own prometheus.Registry so tests can instantiate independent instances.
type Registry struct {
	reg *prometheus.Registry

	MatchesByPhase      *prometheus.CounterVec
	MintRPCDuration     *prometheus.HistogramVec
	MintRPCErrors       *prometheus.CounterVec
	InvalidationReasons *prometheus.CounterVec
	LootIssued          *prometheus.CounterVec
}

// New creates a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		MatchesByPhase: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manastr_validator",
			Name:      "matches_total",
			Help:      "Count of matches that reached each phase.",
		}, []string{"phase"}),

		MintRPCDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "manastr_validator",
			Name:      "mint_rpc_duration_seconds",
			Help:      "Latency of mint RPC calls by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		MintRPCErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manastr_validator",
			Name:      "mint_rpc_errors_total",
			Help:      "Count of mint RPC calls that ultimately failed after retries.",
		}, []string{"method"}),

		InvalidationReasons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manastr_validator",
			Name:      "match_invalidations_total",
			Help:      "Count of matches invalidated, by reason.",
		}, []string{"reason"}),

		LootIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manastr_validator",
			Name:      "loot_issued_total",
			Help:      "Total loot amount issued, by currency.",
		}, []string{"currency"}),
	}
}

// Handler returns the HTTP handler to mount at the metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
