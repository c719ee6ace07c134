// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "todobuilder"

// Registry is the collector registry served by Handler. A dedicated registry
// keeps tests free of global registration conflicts.
var Registry = prometheus.NewRegistry()

var (
	registryMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registry_mutations_total",
		Help:      "Feature registry mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	generationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Time spent generating a single component, endpoint or migration.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"kind", "outcome"})

	testRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "test_runs_total",
		Help:      "Testing pipeline runs by category and outcome.",
	}, []string{"category", "outcome"})

	integrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "integrations_total",
		Help:      "Integration attempts by mode and outcome.",
	}, []string{"mode", "outcome"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_duration_milliseconds",
		Help:      "The duration of time it takes to write a response to an API request.",
		Buckets:   prometheus.ExponentialBuckets(9.375, 2, 10),
	}, []string{"route", "code"})
)

func init() {
	Registry.MustRegister(
		registryMutations,
		generationDuration,
		testRuns,
		integrations,
		httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveMutation counts a registry mutation.
func ObserveMutation(op string, err error) {
	registryMutations.WithLabelValues(op, outcome(err)).Inc()
}

// ObserveGeneration records the duration of one generation call.
func ObserveGeneration(kind string, started time.Time, err error) {
	generationDuration.WithLabelValues(kind, outcome(err)).Observe(time.Since(started).Seconds())
}

// ObserveTestRun counts a test category run.
func ObserveTestRun(category string, passed bool) {
	o := "passed"
	if !passed {
		o = "failed"
	}
	testRuns.WithLabelValues(category, o).Inc()
}

// ObserveIntegration counts an integration attempt.
func ObserveIntegration(dryRun, success bool) {
	mode := "apply"
	if dryRun {
		mode = "dry_run"
	}
	o := "success"
	if !success {
		o = "failure"
	}
	integrations.WithLabelValues(mode, o).Inc()
}

// ObserveHTTP records the duration of a served request.
func ObserveHTTP(route string, status int, started time.Time) {
	httpDuration.WithLabelValues(route, http.StatusText(status)).Observe(float64(time.Since(started).Milliseconds()))
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
