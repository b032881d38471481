package ports

import "time"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector records orchestrator metrics
type MetricsCollector interface {
	RecordLifecycle(operation, outcome string, duration time.Duration)
	RecordDriverCall(driver, operation, outcome string, duration time.Duration)
	RecordSchedulingFailure(action string)
	RecordPlumbing(operation, outcome string)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
