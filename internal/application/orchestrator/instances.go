package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"go.uber.org/zap"
)

// CreateInstance persists an instance and deploys the nodes of its spec.
// If deployment fails the instance is deleted again and the deployment
// error is returned unchanged.
func (m *Manager) CreateInstance(ctx context.Context, req *domain.ServiceChainInstance) (*domain.ServiceChainInstance, error) {
	start := time.Now()
	instance, err := m.createInstance(ctx, req)
	m.record("create_instance", start, err)
	return instance, err
}

func (m *Manager) createInstance(ctx context.Context, req *domain.ServiceChainInstance) (*domain.ServiceChainInstance, error) {
	if err := m.validator.ValidateInstance(req); err != nil {
		return nil, err
	}
	tenantID, err := domain.CallerFrom(ctx).TenantFor(req.TenantID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	instance := req.Clone()
	instance.ID = newID(req.ID)
	instance.TenantID = tenantID
	instance.Status = domain.InstanceStatusBuild
	instance.StatusDetails = ""
	instance.CreatedAt = now
	instance.UpdatedAt = now

	var batch []*ports.ScheduledOp
	err = m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		if err := tx.CreateInstance(ctx, instance); err != nil {
			return err
		}
		if len(instance.SpecIDs) > 1 {
			return &domain.TooManySpecsError{InstanceID: instance.ID, Count: len(instance.SpecIDs)}
		}
		err := tx.Savepoint(ctx, func(tx ports.Tx) error {
			if err := m.validator.CheckInstanceReferences(ctx, tx, instance); err != nil {
				return err
			}
			return m.guard.ValidateSharedCreate(ctx, tx, instance)
		})
		if err != nil {
			return err
		}
		batch, err = m.scheduleInstance(ctx, tx, domain.ActionDeploy, instance)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.release(batch)

	// Execution runs to completion once the instance is committed.
	ctx = context.WithoutCancel(ctx)
	if err := m.deploy(ctx, batch); err != nil {
		m.logger.Error("instance deployment failed, deleting instance",
			zap.String("instance_id", instance.ID),
			zap.Error(err))
		m.compensateCreate(ctx, instance.ID)
		m.publish(ctx, domain.EventTypeInstanceFailed, instance.ID, instance.TenantID, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	created, err := m.setInstanceStatus(ctx, instance.ID, domain.InstanceStatusActive, "")
	if err != nil {
		m.logger.Error("failed to mark instance active",
			zap.String("instance_id", instance.ID),
			zap.Error(err))
		created = instance
	}

	m.publish(ctx, domain.EventTypeInstanceCreated, created.ID, created.TenantID, map[string]interface{}{
		"spec_id": created.SpecID(),
		"nodes":   len(batch),
	})
	m.logger.Info("instance created",
		zap.String("instance_id", created.ID),
		zap.String("tenant_id", created.TenantID),
		zap.Int("nodes", len(batch)))

	return created, nil
}

// compensateCreate removes an instance whose deployment failed
func (m *Manager) compensateCreate(ctx context.Context, instanceID string) {
	_, err := m.removeInstance(ctx, instanceID)
	if err == nil {
		return
	}
	m.logger.Error("compensating delete failed, removing instance record",
		zap.String("instance_id", instanceID),
		zap.Error(err))

	err = m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		return tx.DeleteInstance(ctx, instanceID)
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		m.logger.Error("failed to remove instance record",
			zap.String("instance_id", instanceID),
			zap.Error(err))
	}
}

// UpdateInstance applies an update. When the spec reference changes the
// original spec's nodes are destroyed and the new spec's nodes deployed.
// A deployment failure leaves the committed update in place, marks the
// instance ERROR and is returned.
func (m *Manager) UpdateInstance(ctx context.Context, id string, update domain.InstanceUpdate) (*domain.ServiceChainInstance, error) {
	start := time.Now()
	instance, err := m.updateInstance(ctx, id, update)
	m.record("update_instance", start, err)
	return instance, err
}

func (m *Manager) updateInstance(ctx context.Context, id string, update domain.InstanceUpdate) (*domain.ServiceChainInstance, error) {
	var updated *domain.ServiceChainInstance
	var destroyBatch, deployBatch []*ports.ScheduledOp
	specsChanged := false

	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		original, err := m.loadInstance(ctx, tx, id)
		if err != nil {
			return err
		}

		updated = update.Apply(original)
		updated.UpdatedAt = m.now()
		if err := m.validator.ValidateInstance(updated); err != nil {
			return err
		}
		if len(updated.SpecIDs) > 1 {
			return &domain.TooManySpecsError{InstanceID: id, Count: len(updated.SpecIDs)}
		}
		err = tx.Savepoint(ctx, func(tx ports.Tx) error {
			if err := m.validator.CheckInstanceReferences(ctx, tx, updated); err != nil {
				return err
			}
			return m.guard.ValidateSharedUpdate(ctx, tx, original, updated)
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateInstance(ctx, updated); err != nil {
			return err
		}

		if domain.EqualIDs(original.SpecIDs, updated.SpecIDs) {
			return nil
		}
		specsChanged = true
		destroyBatch, err = m.scheduleInstance(ctx, tx, domain.ActionDestroy, original)
		if err != nil {
			return err
		}
		deployBatch, err = m.scheduleInstance(ctx, tx, domain.ActionDeploy, updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.release(destroyBatch, deployBatch)

	ctx = context.WithoutCancel(ctx)
	if specsChanged {
		m.destroy(ctx, destroyBatch)
		if err := m.deploy(ctx, deployBatch); err != nil {
			m.logger.Error("instance update deployment failed",
				zap.String("instance_id", id),
				zap.Error(err))
			if _, serr := m.setInstanceStatus(ctx, id, domain.InstanceStatusError, err.Error()); serr != nil {
				m.logger.Error("failed to mark instance in error",
					zap.String("instance_id", id),
					zap.Error(serr))
			}
			m.publish(ctx, domain.EventTypeInstanceFailed, id, updated.TenantID, map[string]interface{}{
				"error": err.Error(),
			})
			return nil, err
		}

		active, err := m.setInstanceStatus(ctx, id, domain.InstanceStatusActive, "")
		if err != nil {
			m.logger.Error("failed to mark instance active",
				zap.String("instance_id", id),
				zap.Error(err))
		} else {
			updated = active
		}
	}

	m.publish(ctx, domain.EventTypeInstanceUpdated, id, updated.TenantID, map[string]interface{}{
		"spec_id":       updated.SpecID(),
		"specs_changed": specsChanged,
	})
	m.logger.Info("instance updated",
		zap.String("instance_id", id),
		zap.Bool("specs_changed", specsChanged))

	return updated, nil
}

// DeleteInstance destroys the instance's nodes, then deletes the instance.
// Node destroy failures are logged and do not stop the deletion.
func (m *Manager) DeleteInstance(ctx context.Context, id string) error {
	start := time.Now()
	instance, err := m.removeInstance(ctx, id)
	m.record("delete_instance", start, err)
	if err != nil {
		return err
	}

	m.publish(ctx, domain.EventTypeInstanceDeleted, id, instance.TenantID, nil)
	m.logger.Info("instance deleted", zap.String("instance_id", id))
	return nil
}

func (m *Manager) removeInstance(ctx context.Context, id string) (*domain.ServiceChainInstance, error) {
	var instance *domain.ServiceChainInstance
	var batch []*ports.ScheduledOp

	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		var err error
		instance, err = m.loadInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		batch, err = m.scheduleInstance(ctx, tx, domain.ActionDestroy, instance)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.release(batch)

	// Once nodes start going away the record must follow, whatever the
	// caller does with its context.
	ctx = context.WithoutCancel(ctx)
	m.destroy(ctx, batch)

	err = m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		return tx.DeleteInstance(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// GetInstance returns an instance visible to the caller
func (m *Manager) GetInstance(ctx context.Context, id string) (*domain.ServiceChainInstance, error) {
	var instance *domain.ServiceChainInstance
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		var err error
		instance, err = m.loadInstance(ctx, tx, id)
		return err
	})
	return instance, err
}

// ListInstances returns the instances visible to the caller
func (m *Manager) ListInstances(ctx context.Context) ([]*domain.ServiceChainInstance, error) {
	caller := domain.CallerFrom(ctx)
	var out []*domain.ServiceChainInstance
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		tenantID := caller.TenantID
		if caller.IsAdmin {
			tenantID = ""
		}
		var err error
		out, err = tx.ListInstances(ctx, tenantID)
		return err
	})
	return out, err
}

func (m *Manager) loadInstance(ctx context.Context, tx ports.Tx, id string) (*domain.ServiceChainInstance, error) {
	instance, err := tx.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CallerFrom(ctx).CanSee(instance.TenantID, false) {
		return nil, &domain.NotFoundError{Kind: domain.KindInstance, ID: id}
	}
	return instance, nil
}

// setInstanceStatus records a status in a fresh transaction
func (m *Manager) setInstanceStatus(ctx context.Context, id string, status domain.InstanceStatus, details string) (*domain.ServiceChainInstance, error) {
	var instance *domain.ServiceChainInstance
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		var err error
		instance, err = tx.GetInstance(ctx, id)
		if err != nil {
			return err
		}
		instance.Status = status
		instance.StatusDetails = details
		instance.UpdatedAt = m.now()
		return tx.UpdateInstance(ctx, instance)
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}
