package domain

// ============================================================
// Health API responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
	Refresh  *RefreshStats   `json:"refresh,omitempty"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// RefreshStats summarizes refresh activity since process start.
type RefreshStats struct {
	Succeeded        int64 `json:"succeeded"`
	Failed           int64 `json:"failed"`
	BookingConflicts int64 `json:"bookingConflicts"`
}

// DeleteResponse confirms a delete.
type DeleteResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}
