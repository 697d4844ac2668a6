package eventbus

// FeedsUpdatedData announces that a driver's state-log or order feed changed.
// From and To optionally bound the affected period in epoch seconds.
type FeedsUpdatedData struct {
	DriverID string `json:"driver_id"`
	Feed     string `json:"feed,omitempty"` // "state_logs", "orders" or empty for both
	From     int64  `json:"from,omitempty"`
	To       int64  `json:"to,omitempty"`
}

// ReportComputedData is published after a report was computed (not served from cache).
type ReportComputedData struct {
	DriverID     string  `json:"driver_id"`
	From         int64   `json:"from"`
	To           int64   `json:"to"`
	Timezone     string  `json:"timezone"`
	FeedVersion  int64   `json:"feed_version"`
	ComputeMS    int64   `json:"compute_ms"`
	GrossEarning float64 `json:"gross_earnings"`
	WorkingHours float64 `json:"working_hours"`
}
