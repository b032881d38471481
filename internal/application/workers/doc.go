// Package workers implements a bounded worker pool for fan-out work.
//
// The orchestrator uses the pool to run per-instance driver updates after a
// node update commits. Each task runs on one of a fixed number of
// goroutines; Run waits for the whole batch and reports every task's error
// separately so one failure never hides another.
//
// The health monitor reports worker status, the fan-outs in flight and the
// most recent node update failures, and records worker status as metrics.
package workers
