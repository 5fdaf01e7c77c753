package observability

import (
	"time"

	"github.com/boddenberg/account-aggregator-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the aggregator.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	runDuration        *prometheus.HistogramVec
	pagesFetched       *prometheus.CounterVec
	duplicatesDropped  *prometheus.CounterVec
	enrichmentFailures prometheus.Counter
	accountsFallbacks  prometheus.Counter
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	reportsTotal       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregator_run_duration_seconds",
				Help:    "Duration of aggregation operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		pagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_pages_fetched_total",
				Help: "Total pages fetched, by resource.",
			},
			[]string{"resource"},
		),
		duplicatesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_duplicates_dropped_total",
				Help: "Entries dropped because their key was already seen.",
			},
			[]string{"resource"},
		),
		enrichmentFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "aggregator_enrichment_failures_total",
				Help: "Accounts reported with an empty transaction list after a failure.",
			},
		),
		accountsFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "aggregator_accounts_fallbacks_total",
				Help: "Runs whose account listing failed and fell back to empty.",
			},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_external_errors_total",
				Help: "Total errors from the remote API.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		reportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_reports_total",
				Help: "Total aggregation runs.",
			},
			[]string{"status"},
		),
	}
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.runDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrPagesFetched counts one fetched page.
func (m *Metrics) IncrPagesFetched(resource domain.Resource) {
	m.pagesFetched.WithLabelValues(string(resource)).Inc()
}

// AddDuplicatesDropped counts entries discarded by deduplication.
func (m *Metrics) AddDuplicatesDropped(resource domain.Resource, n int) {
	if n <= 0 {
		return
	}
	m.duplicatesDropped.WithLabelValues(string(resource)).Add(float64(n))
}

// IncrEnrichmentFailure counts an account whose transactions were dropped.
func (m *Metrics) IncrEnrichmentFailure() {
	m.enrichmentFailures.Inc()
}

// IncrAccountsFallback counts a failed account listing.
func (m *Metrics) IncrAccountsFallback() {
	m.accountsFallbacks.Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrReport increments the report counter with a status label.
func (m *Metrics) IncrReport(status string) {
	m.reportsTotal.WithLabelValues(status).Inc()
}

// Snapshot returns the cumulative counter values, for the end-of-run
// summary and the GET /v1/metrics/aggregator endpoint.
func (m *Metrics) Snapshot() *domain.AggregatorMetrics {
	return &domain.AggregatorMetrics{
		Reports:            int64(sumCounterVec(m.reportsTotal, "success", "error")),
		FailedReports:      int64(getCounterValue(m.reportsTotal.WithLabelValues("error"))),
		PagesFetched:       int64(sumCounterVec(m.pagesFetched, string(domain.ResourceAccounts), string(domain.ResourceTransactions))),
		DuplicatesDropped:  int64(sumCounterVec(m.duplicatesDropped, string(domain.ResourceAccounts), string(domain.ResourceTransactions))),
		EnrichmentFailures: int64(getCounterValue(m.enrichmentFailures)),
		AccountsFallbacks:  int64(getCounterValue(m.accountsFallbacks)),
		ReportCacheHits:    int64(getCounterValue(m.cacheHits.WithLabelValues("report"))),
		ReportCacheMisses:  int64(getCounterValue(m.cacheMisses.WithLabelValues("report"))),
	}
}

func sumCounterVec(cv *prometheus.CounterVec, labels ...string) float64 {
	var total float64
	for _, l := range labels {
		total += getCounterValue(cv.WithLabelValues(l))
	}
	return total
}

// getCounterValue extracts the current float64 value from a counter.
func getCounterValue(counter prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
