package domain

// ============================================================
// Health, setup & metrics API responses
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
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// SetupStatus is returned by GET /setup.
type SetupStatus struct {
	Backend     string `json:"backend"`
	Configured  bool   `json:"configured"`
	TablesReady bool   `json:"tables_ready"`
	StoreURL    string `json:"store_url,omitempty"`
}

// ConnectionTest is returned by GET /setup/test.
type ConnectionTest struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LedgerMetrics is returned by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	Entrances            int64 `json:"entrances"`
	Exits                int64 `json:"exits"`
	SettlementsCompleted int64 `json:"settlementsCompleted"`
	SettlementsRejected  int64 `json:"settlementsRejected"`
	CompensationsApplied int64 `json:"compensationsApplied"`
	CompensationsFailed  int64 `json:"compensationsFailed"`
	StoreErrors          int64 `json:"storeErrors"`
}
