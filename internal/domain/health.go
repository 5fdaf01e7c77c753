package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LastChecked string `json:"lastChecked"`
}

// AggregatorMetrics is returned by GET /v1/metrics/aggregator.
type AggregatorMetrics struct {
	Reports            int64 `json:"reports"`
	FailedReports      int64 `json:"failedReports"`
	PagesFetched       int64 `json:"pagesFetched"`
	DuplicatesDropped  int64 `json:"duplicatesDropped"`
	EnrichmentFailures int64 `json:"enrichmentFailures"`
	AccountsFallbacks  int64 `json:"accountsFallbacks"`
	ReportCacheHits    int64 `json:"reportCacheHits"`
	ReportCacheMisses  int64 `json:"reportCacheMisses"`
}
