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
	Circuit     string `json:"circuit,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// QueryMetrics is returned by GET /v1/metrics/queries.
type QueryMetrics struct {
	CacheHits      int64   `json:"cacheHits"`
	CacheMisses    int64   `json:"cacheMisses"`
	CacheHitRate   float64 `json:"cacheHitRate"`
	Invalidations  int64   `json:"invalidations"`
	StaleDiscarded int64   `json:"staleDiscarded"`
	UpstreamErrors int64   `json:"upstreamErrors"`
	Unauthorized   int64   `json:"unauthorized"`
	ActiveSessions int     `json:"activeSessions"`
	Period         string  `json:"period"`
}
