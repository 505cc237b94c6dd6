package jobs

import "sync/atomic"

// Metrics counts job outcomes since process start. Active job count is
// derived from the store, not counted here.
type Metrics struct {
	completed  atomic.Int64
	errored    atomic.Int64
	cancelled  atomic.Int64
	rejections atomic.Int64
}

// MetricsSnapshot is the wire shape of the metrics endpoint.
type MetricsSnapshot struct {
	ActiveJobs      int   `json:"active_jobs"`
	QueueRejections int64 `json:"queue_rejections"`
	Completed       int64 `json:"completed"`
	Errored         int64 `json:"errored"`
	Cancelled       int64 `json:"cancelled"`
}
