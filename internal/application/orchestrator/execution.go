package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/nodecomp/internal/application/workers"
	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"go.uber.org/zap"
)

// deploy plugs the whole batch, then creates each node in order. The first
// failure stops the batch and is returned as is.
func (m *Manager) deploy(ctx context.Context, batch []*ports.ScheduledOp) error {
	if err := m.plumber.PlugServices(ctx, batch); err != nil {
		m.metrics.RecordPlumbing("plug", ports.OutcomeFailure)
		return err
	}
	m.metrics.RecordPlumbing("plug", ports.OutcomeSuccess)

	for _, op := range batch {
		if err := m.callDriver(ctx, "create", op, op.Driver.Create); err != nil {
			return err
		}
	}
	return nil
}

// destroy deletes every node of the batch. Failures are logged and the
// remaining nodes are still deleted; the batch is always unplugged.
func (m *Manager) destroy(ctx context.Context, batch []*ports.ScheduledOp) {
	defer func() {
		if err := m.plumber.UnplugServices(ctx, batch); err != nil {
			m.metrics.RecordPlumbing("unplug", ports.OutcomeFailure)
			m.logger.Error("failed to unplug services",
				zap.Int("nodes", len(batch)),
				zap.Error(err))
			return
		}
		m.metrics.RecordPlumbing("unplug", ports.OutcomeSuccess)
	}()

	for _, op := range batch {
		m.destroyNode(ctx, op)
	}
}

func (m *Manager) destroyNode(ctx context.Context, op *ports.ScheduledOp) {
	err := m.safeCall(ctx, "delete", op, op.Driver.Delete)
	if err == nil {
		return
	}

	var driverErr *domain.NodeDriverError
	if errors.As(err, &driverErr) {
		m.logger.Error("node destroy failed",
			zap.String("node_id", op.Key),
			zap.String("driver", op.Driver.Name()),
			zap.Error(err))
		return
	}
	m.logger.Error("unexpected error destroying node",
		zap.String("node_id", op.Key),
		zap.String("driver", op.Driver.Name()),
		zap.Error(err))
}

// updateNodes runs the scheduled node updates, one per instance. Each
// update is isolated: a failure is logged and does not affect the others.
// The caller's cancellation does not stop the fan-out once it has begun.
func (m *Manager) updateNodes(ctx context.Context, batch []*ports.ScheduledOp) {
	ctx = context.WithoutCancel(ctx)
	if len(batch) == 0 {
		return
	}

	tasks := make([]workers.Task, len(batch))
	for i, op := range batch {
		op := op
		tasks[i] = func(ctx context.Context) error {
			return m.safeCall(ctx, "update", op, op.Driver.Update)
		}
	}

	for i, err := range m.runTasks(ctx, tasks) {
		if err == nil {
			continue
		}
		op := batch[i]
		m.logger.Error("node update failed",
			zap.String("instance_id", op.Key),
			zap.String("node_id", op.Context.CurrentNode.ID),
			zap.String("driver", op.Driver.Name()),
			zap.Error(err))
		if m.pool != nil {
			m.pool.Health().RecordUpdateFailure(workers.UpdateFailure{
				InstanceID: op.Key,
				NodeID:     op.Context.CurrentNode.ID,
				Driver:     op.Driver.Name(),
				Error:      err.Error(),
			})
		}
	}
}

// runTasks fans tasks out over the worker pool, falling back to sequential
// execution when there is no running pool.
func (m *Manager) runTasks(ctx context.Context, tasks []workers.Task) []error {
	if m.pool == nil {
		errs := make([]error, len(tasks))
		for i, task := range tasks {
			errs[i] = task(ctx)
		}
		return errs
	}

	errs := m.pool.Run(ctx, tasks)
	for i, err := range errs {
		if errors.Is(err, workers.ErrPoolStopped) {
			errs[i] = tasks[i](ctx)
		}
	}
	return errs
}

type driverCall func(ctx context.Context, nc *ports.NodeContext) error

// callDriver invokes one driver operation and records its outcome
func (m *Manager) callDriver(ctx context.Context, operation string, op *ports.ScheduledOp, call driverCall) error {
	start := time.Now()
	err := call(ctx, op.Context)

	outcome := ports.OutcomeSuccess
	if err != nil {
		outcome = ports.OutcomeFailure
	}
	m.metrics.RecordDriverCall(op.Driver.Name(), operation, outcome, time.Since(start))
	return err
}

// safeCall is callDriver with driver panics turned into errors
func (m *Manager) safeCall(ctx context.Context, operation string, op *ports.ScheduledOp, call driverCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("driver %s panicked during %s: %v", op.Driver.Name(), operation, r)
		}
	}()
	return m.callDriver(ctx, operation, op, call)
}
