package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxRecentFailures bounds the update failures kept for health reports
const maxRecentFailures = 20

// HealthMonitor reports worker status together with the node update
// fan-outs running on the pool and the most recent update failures.
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	fanouts          int
	pendingTasks     int
	failures         []UpdateFailure
	failedSinceCheck int
}

// UpdateFailure is one instance whose node update failed after commit
type UpdateFailure struct {
	InstanceID string    `json:"instance_id"`
	NodeID     string    `json:"node_id"`
	Driver     string    `json:"driver"`
	Error      string    `json:"error"`
	At         time.Time `json:"at"`
}

// HealthStatus represents the health status of the worker pool
type HealthStatus struct {
	TotalWorkers   int             `json:"total_workers"`
	IdleWorkers    int             `json:"idle_workers"`
	BusyWorkers    int             `json:"busy_workers"`
	StoppedWorkers int             `json:"stopped_workers"`
	ActiveFanouts  int             `json:"active_fanouts"`
	PendingTasks   int             `json:"pending_tasks"`
	RecentFailures []UpdateFailure `json:"recent_failures,omitempty"`
	Healthy        bool            `json:"healthy"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the periodic health check
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})
	go h.run(h.stopCh)
}

// Stop stops the periodic health check
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopCh)
}

func (h *HealthMonitor) run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			h.checkHealth()
		}
	}
}

// RecordUpdateFailure keeps a failed node update for the health report
func (h *HealthMonitor) RecordUpdateFailure(f UpdateFailure) {
	if f.At.IsZero() {
		f.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, f)
	if len(h.failures) > maxRecentFailures {
		h.failures = h.failures[len(h.failures)-maxRecentFailures:]
	}
	h.failedSinceCheck++
}

func (h *HealthMonitor) beginFanout(tasks int) {
	h.mu.Lock()
	h.fanouts++
	h.pendingTasks += tasks
	h.mu.Unlock()
}

func (h *HealthMonitor) taskDone() {
	h.mu.Lock()
	h.pendingTasks--
	h.mu.Unlock()
}

// endFanout closes a fan-out; skipped counts tasks that never reached a worker
func (h *HealthMonitor) endFanout(skipped int) {
	h.mu.Lock()
	h.fanouts--
	h.pendingTasks -= skipped
	h.mu.Unlock()
}

// checkHealth logs the pool status and records it as metrics
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.mu.Lock()
	failed := h.failedSinceCheck
	h.failedSinceCheck = 0
	h.mu.Unlock()

	h.logger.Info("worker pool health check",
		zap.Int("total", status.TotalWorkers),
		zap.Int("idle", status.IdleWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("active_fanouts", status.ActiveFanouts),
		zap.Int("pending_tasks", status.PendingTasks),
		zap.Bool("healthy", status.Healthy))

	if h.pool.metrics != nil {
		h.pool.metrics.RecordWorkerPoolStatus(
			status.IdleWorkers,
			status.BusyWorkers,
			status.StoppedWorkers,
		)
	}

	if failed > 0 && len(status.RecentFailures) > 0 {
		last := status.RecentFailures[len(status.RecentFailures)-1]
		h.logger.Warn("node updates failed since last health check",
			zap.Int("failed", failed),
			zap.String("last_instance_id", last.InstanceID),
			zap.String("last_node_id", last.NodeID))
	}

	if !status.Healthy {
		h.logger.Warn("worker pool is unhealthy",
			zap.Int("stopped", status.StoppedWorkers),
			zap.Int("total", status.TotalWorkers))
	}
}

// GetStatus returns the current health status. The pool is healthy while
// every worker is running; a pool saturated by node updates still is.
func (h *HealthMonitor) GetStatus() *HealthStatus {
	status := &HealthStatus{Timestamp: time.Now()}

	workerStatuses := h.pool.GetStatus()
	for _, ws := range workerStatuses {
		switch ws {
		case WorkerStatusIdle:
			status.IdleWorkers++
		case WorkerStatusBusy:
			status.BusyWorkers++
		case WorkerStatusStopped:
			status.StoppedWorkers++
		}
	}
	status.TotalWorkers = len(workerStatuses)
	status.Healthy = status.TotalWorkers > 0 && status.StoppedWorkers == 0

	h.mu.Lock()
	status.ActiveFanouts = h.fanouts
	status.PendingTasks = h.pendingTasks
	if len(h.failures) > 0 {
		status.RecentFailures = append([]UpdateFailure(nil), h.failures...)
	}
	h.mu.Unlock()

	return status
}

// IsHealthy returns true if the worker pool is healthy
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
