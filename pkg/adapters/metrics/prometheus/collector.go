package prometheus

import (
	"time"

	"github.com/aescanero/nodecomp/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ ports.MetricsCollector = (*Collector)(nil)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	lifecycleTotal     *prometheus.CounterVec
	lifecycleDuration  *prometheus.HistogramVec
	driverCalls        *prometheus.CounterVec
	driverDuration     *prometheus.HistogramVec
	schedulingFailures *prometheus.CounterVec
	plumbingTotal      *prometheus.CounterVec
	workerPoolIdle     prometheus.Gauge
	workerPoolBusy     prometheus.Gauge
	workerPoolStopped  prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered on reg.
// Pass prometheus.DefaultRegisterer to expose it on the default /metrics handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		lifecycleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodecomp_lifecycle_operations_total",
				Help: "Total number of lifecycle operations",
			},
			[]string{"operation", "outcome"},
		),
		lifecycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodecomp_lifecycle_duration_seconds",
				Help:    "Lifecycle operation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		driverCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodecomp_driver_calls_total",
				Help: "Total number of node driver calls",
			},
			[]string{"driver", "operation", "outcome"},
		),
		driverDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodecomp_driver_call_duration_seconds",
				Help:    "Node driver call duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"driver", "operation"},
		),
		schedulingFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodecomp_scheduling_failures_total",
				Help: "Total number of nodes no driver could be scheduled for",
			},
			[]string{"action"},
		),
		plumbingTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodecomp_plumbing_operations_total",
				Help: "Total number of plug and unplug calls",
			},
			[]string{"operation", "outcome"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nodecomp_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nodecomp_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nodecomp_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordLifecycle records one orchestrator lifecycle operation
func (c *Collector) RecordLifecycle(operation, outcome string, duration time.Duration) {
	c.lifecycleTotal.WithLabelValues(operation, outcome).Inc()
	c.lifecycleDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDriverCall records one driver create/update/delete call
func (c *Collector) RecordDriverCall(driver, operation, outcome string, duration time.Duration) {
	c.driverCalls.WithLabelValues(driver, operation, outcome).Inc()
	c.driverDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
}

// RecordSchedulingFailure records a node with no qualifying driver
func (c *Collector) RecordSchedulingFailure(action string) {
	c.schedulingFailures.WithLabelValues(action).Inc()
}

// RecordPlumbing records one plug or unplug batch
func (c *Collector) RecordPlumbing(operation, outcome string) {
	c.plumbingTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
