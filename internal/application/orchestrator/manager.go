package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/nodecomp/internal/application/workers"
	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ ports.ChainReader = (*Manager)(nil)

// Manager coordinates service chain lifecycles. Each call runs a
// transactional phase against the entity store, then drives plumbing and
// node drivers outside the transaction.
type Manager struct {
	store     ports.EntityStore
	registry  ports.DriverRegistry
	plumber   ports.Plumber
	guard     ports.SharingGuard
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	pool      *workers.Pool
	validator *Validator
	logger    *zap.Logger

	now func() time.Time
}

// NewManager creates a new orchestrator manager. eventBus, metrics and pool
// may be nil; without a pool node updates run sequentially.
func NewManager(
	store ports.EntityStore,
	registry ports.DriverRegistry,
	plumber ports.Plumber,
	guard ports.SharingGuard,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	pool *workers.Pool,
	validator *Validator,
	logger *zap.Logger,
) *Manager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Manager{
		store:     store,
		registry:  registry,
		plumber:   plumber,
		guard:     guard,
		eventBus:  eventBus,
		metrics:   metrics,
		pool:      pool,
		validator: validator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Initialize loads the driver registry and the plumber. Call once at startup.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.registry.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize driver registry: %w", err)
	}
	if err := m.plumber.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize plumber: %w", err)
	}
	m.logger.Info("orchestrator manager initialized")
	return nil
}

// Shutdown gracefully shuts down the manager
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("orchestrator manager shut down complete")
	return nil
}

// record reports one lifecycle call
func (m *Manager) record(operation string, start time.Time, err error) {
	outcome := ports.OutcomeSuccess
	if err != nil {
		outcome = ports.OutcomeFailure
	}
	m.metrics.RecordLifecycle(operation, outcome, time.Since(start))
}

// publish sends a lifecycle notification. Failures are logged only.
func (m *Manager) publish(ctx context.Context, eventType domain.EventType, resourceID, tenantID string, data map[string]interface{}) {
	if m.eventBus == nil {
		return
	}

	event := domain.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		ResourceID: resourceID,
		TenantID:   tenantID,
		Timestamp:  m.now(),
		Data:       data,
	}

	if err := m.eventBus.Publish(context.WithoutCancel(ctx), domain.TopicChainEvents, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.String("resource_id", resourceID),
			zap.Error(err))
	}
}

func newID(requested string) string {
	if requested != "" {
		return requested
	}
	return uuid.New().String()
}

// ownedBy rejects changes by a non-admin caller to another tenant's entity
func ownedBy(caller domain.Caller, kind, id, tenantID string) error {
	if caller.IsAdmin || caller.TenantID == tenantID {
		return nil
	}
	return &domain.SharingError{Kind: kind, ID: id, Reason: "owned by another tenant"}
}

type noopMetrics struct{}

func (noopMetrics) RecordLifecycle(operation, outcome string, duration time.Duration) {}
func (noopMetrics) RecordDriverCall(driver, operation, outcome string, duration time.Duration) {
}
func (noopMetrics) RecordSchedulingFailure(action string)          {}
func (noopMetrics) RecordPlumbing(operation, outcome string)       {}
func (noopMetrics) RecordWorkerPoolStatus(idle, busy, stopped int) {}
