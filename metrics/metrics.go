// Package metrics exposes Prometheus metrics for the query endpoints and the
// saved search store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"telemetry_search/events"
	"telemetry_search/query"
)

var (
	// queriesTotal counts queries handled by source ("http", "ws", "cli") and operation.
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_search_queries_total",
		Help: "Queries parsed, formatted or edited, by source and operation",
	}, []string{"source", "operation"})

	// queryTokens tracks the size of parsed queries.
	queryTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_search_query_tokens",
		Help:    "Number of tokens per parsed query",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	// lintIssuesTotal counts queries by whether lint found anything.
	lintIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_search_lint_results_total",
		Help: "Lint results by outcome",
	}, []string{"outcome"})

	// editErrorsTotal counts rejected edit batches.
	editErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_search_edit_errors_total",
		Help: "Edit batches rejected for an unknown operation",
	})

	// savedSearchEventsTotal counts saved search lifecycle events by type.
	savedSearchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_search_saved_search_events_total",
		Help: "Saved search lifecycle events by type",
	}, []string{"type"})
)

// ObserveResult records a handled query and its lint outcome.
func ObserveResult(source, operation string, result *query.Result) {
	queriesTotal.WithLabelValues(source, operation).Inc()
	if result == nil {
		return
	}
	queryTokens.Observe(float64(len(result.Tokens)))
	if result.Valid {
		lintIssuesTotal.WithLabelValues("clean").Inc()
	} else {
		lintIssuesTotal.WithLabelValues("issues").Inc()
	}
}

// ObserveEditError records an edit batch rejected by query.Expression.Apply.
func ObserveEditError() {
	editErrorsTotal.Inc()
}

// Subscribe counts saved search events published on bus.
func Subscribe(bus *events.Bus) []*events.Subscription {
	return bus.SubscribeAll(func(e events.Event) {
		savedSearchEventsTotal.WithLabelValues(string(e.Type())).Inc()
	})
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
