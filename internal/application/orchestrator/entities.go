package orchestrator

import (
	"context"
	"time"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"go.uber.org/zap"
)

// Profiles

// CreateProfile persists a new service profile
func (m *Manager) CreateProfile(ctx context.Context, req *domain.ServiceProfile) (*domain.ServiceProfile, error) {
	start := time.Now()
	profile, err := m.createProfile(ctx, req)
	m.record("create_profile", start, err)
	return profile, err
}

func (m *Manager) createProfile(ctx context.Context, req *domain.ServiceProfile) (*domain.ServiceProfile, error) {
	if err := m.validator.ValidateProfile(req); err != nil {
		return nil, err
	}
	tenantID, err := domain.CallerFrom(ctx).TenantFor(req.TenantID)
	if err != nil {
		return nil, err
	}

	profile := req.Clone()
	profile.ID = newID(req.ID)
	profile.TenantID = tenantID
	profile.CreatedAt = m.now()
	profile.NodeIDs = nil

	var created *domain.ServiceProfile
	err = m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		if err := m.guard.ValidateSharedCreate(ctx, tx, profile); err != nil {
			return err
		}
		if err := tx.CreateProfile(ctx, profile); err != nil {
			return err
		}
		var err error
		created, err = tx.GetProfile(ctx, profile.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, domain.EventTypeProfileCreated, created.ID, created.TenantID, nil)
	m.logger.Info("service profile created",
		zap.String("profile_id", created.ID),
		zap.String("service_type", created.ServiceType))
	return created, nil
}

// UpdateProfile updates a profile. Profiles reachable from a live instance
// cannot change.
func (m *Manager) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.ServiceProfile, error) {
	start := time.Now()
	profile, err := m.updateProfile(ctx, id, update)
	m.record("update_profile", start, err)
	return profile, err
}

func (m *Manager) updateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.ServiceProfile, error) {
	var updated *domain.ServiceProfile
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		original, err := m.loadProfile(ctx, tx, id)
		if err != nil {
			return err
		}

		instanceID, err := tx.InstanceUsingProfile(ctx, id)
		if err != nil {
			return err
		}
		if instanceID != "" {
			return &domain.ProfileInUseError{ProfileID: id, InstanceID: instanceID}
		}

		next := update.Apply(original)
		if err := m.validator.ValidateProfile(next); err != nil {
			return err
		}
		if err := m.guard.ValidateSharedUpdate(ctx, tx, original, next); err != nil {
			return err
		}
		if err := tx.UpdateProfile(ctx, next); err != nil {
			return err
		}
		updated, err = tx.GetProfile(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, domain.EventTypeProfileUpdated, id, updated.TenantID, nil)
	return updated, nil
}

// DeleteProfile deletes a profile no node uses
func (m *Manager) DeleteProfile(ctx context.Context, id string) error {
	start := time.Now()
	var tenantID string
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		profile, err := m.loadProfile(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ownedBy(domain.CallerFrom(ctx), domain.KindProfile, id, profile.TenantID); err != nil {
			return err
		}
		if len(profile.NodeIDs) > 0 {
			return &domain.InUseError{Kind: domain.KindProfile, ID: id, UsedBy: domain.KindNode + " " + profile.NodeIDs[0]}
		}
		tenantID = profile.TenantID
		return tx.DeleteProfile(ctx, id)
	})
	m.record("delete_profile", start, err)
	if err != nil {
		return err
	}

	m.publish(ctx, domain.EventTypeProfileDeleted, id, tenantID, nil)
	return nil
}

// GetProfile returns a profile visible to the caller
func (m *Manager) GetProfile(ctx context.Context, id string) (*domain.ServiceProfile, error) {
	var profile *domain.ServiceProfile
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		var err error
		profile, err = m.loadProfile(ctx, tx, id)
		return err
	})
	return profile, err
}

// ListProfiles returns the profiles visible to the caller
func (m *Manager) ListProfiles(ctx context.Context) ([]*domain.ServiceProfile, error) {
	var out []*domain.ServiceProfile
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		all, err := tx.ListProfiles(ctx, "")
		if err != nil {
			return err
		}
		out = visible(ctx, all, func(p *domain.ServiceProfile) (string, bool) { return p.TenantID, p.Shared })
		return nil
	})
	return out, err
}

func (m *Manager) loadProfile(ctx context.Context, tx ports.Tx, id string) (*domain.ServiceProfile, error) {
	profile, err := tx.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CallerFrom(ctx).CanSee(profile.TenantID, profile.Shared) {
		return nil, &domain.NotFoundError{Kind: domain.KindProfile, ID: id}
	}
	return profile, nil
}

// Nodes

// CreateNode persists a new service chain node
func (m *Manager) CreateNode(ctx context.Context, req *domain.ServiceChainNode) (*domain.ServiceChainNode, error) {
	start := time.Now()
	node, err := m.createNode(ctx, req)
	m.record("create_node", start, err)
	return node, err
}

func (m *Manager) createNode(ctx context.Context, req *domain.ServiceChainNode) (*domain.ServiceChainNode, error) {
	if err := m.validator.ValidateNode(req); err != nil {
		return nil, err
	}
	tenantID, err := domain.CallerFrom(ctx).TenantFor(req.TenantID)
	if err != nil {
		return nil, err
	}

	node := req.Clone()
	node.ID = newID(req.ID)
	node.TenantID = tenantID
	node.CreatedAt = m.now()
	node.SpecIDs = nil

	var created *domain.ServiceChainNode
	err = m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		err := tx.Savepoint(ctx, func(tx ports.Tx) error {
			if err := m.validator.CheckNodeReferences(ctx, tx, node); err != nil {
				return err
			}
			return m.guard.ValidateSharedCreate(ctx, tx, node)
		})
		if err != nil {
			return err
		}
		if err := tx.CreateNode(ctx, node); err != nil {
			return err
		}
		created, err = tx.GetNode(ctx, node.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, domain.EventTypeNodeCreated, created.ID, created.TenantID, map[string]interface{}{
		"profile_id": created.ProfileID,
	})
	m.logger.Info("service chain node created",
		zap.String("node_id", created.ID),
		zap.String("profile_id", created.ProfileID))
	return created, nil
}

// UpdateNode updates a node and propagates the change to every instance
// running it. An instance without a qualifying update driver aborts the
// update; driver update failures after commit are logged per instance.
func (m *Manager) UpdateNode(ctx context.Context, id string, update domain.NodeUpdate) (*domain.ServiceChainNode, error) {
	start := time.Now()
	node, err := m.updateNode(ctx, id, update)
	m.record("update_node", start, err)
	return node, err
}

func (m *Manager) updateNode(ctx context.Context, id string, update domain.NodeUpdate) (*domain.ServiceChainNode, error) {
	var updated *domain.ServiceChainNode
	var batch []*ports.ScheduledOp

	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		original, err := m.loadNode(ctx, tx, id)
		if err != nil {
			return err
		}

		next := update.Apply(original)
		if err := m.validator.ValidateNode(next); err != nil {
			return err
		}
		err = tx.Savepoint(ctx, func(tx ports.Tx) error {
			if err := m.validator.CheckNodeReferences(ctx, tx, next); err != nil {
				return err
			}
			return m.guard.ValidateSharedUpdate(ctx, tx, original, next)
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateNode(ctx, next); err != nil {
			return err
		}
		updated, err = tx.GetNode(ctx, id)
		if err != nil {
			return err
		}

		batch, err = m.scheduleNodeUpdate(ctx, tx, original, updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.release(batch)

	m.updateNodes(ctx, batch)

	m.publish(ctx, domain.EventTypeNodeUpdated, id, updated.TenantID, map[string]interface{}{
		"instances": len(batch),
	})
	m.logger.Info("service chain node updated",
		zap.String("node_id", id),
		zap.Int("instances", len(batch)))
	return updated, nil
}

// DeleteNode deletes a node no spec includes
func (m *Manager) DeleteNode(ctx context.Context, id string) error {
	start := time.Now()
	var tenantID string
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		node, err := m.loadNode(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ownedBy(domain.CallerFrom(ctx), domain.KindNode, id, node.TenantID); err != nil {
			return err
		}
		if len(node.SpecIDs) > 0 {
			return &domain.InUseError{Kind: domain.KindNode, ID: id, UsedBy: domain.KindSpec + " " + node.SpecIDs[0]}
		}
		tenantID = node.TenantID
		return tx.DeleteNode(ctx, id)
	})
	m.record("delete_node", start, err)
	if err != nil {
		return err
	}

	m.publish(ctx, domain.EventTypeNodeDeleted, id, tenantID, nil)
	return nil
}

// GetNode returns a node visible to the caller
func (m *Manager) GetNode(ctx context.Context, id string) (*domain.ServiceChainNode, error) {
	var node *domain.ServiceChainNode
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		var err error
		node, err = m.loadNode(ctx, tx, id)
		return err
	})
	return node, err
}

// ListNodes returns the nodes visible to the caller
func (m *Manager) ListNodes(ctx context.Context) ([]*domain.ServiceChainNode, error) {
	var out []*domain.ServiceChainNode
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		all, err := tx.ListNodes(ctx, "")
		if err != nil {
			return err
		}
		out = visible(ctx, all, func(n *domain.ServiceChainNode) (string, bool) { return n.TenantID, n.Shared })
		return nil
	})
	return out, err
}

func (m *Manager) loadNode(ctx context.Context, tx ports.Tx, id string) (*domain.ServiceChainNode, error) {
	node, err := tx.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CallerFrom(ctx).CanSee(node.TenantID, node.Shared) {
		return nil, &domain.NotFoundError{Kind: domain.KindNode, ID: id}
	}
	return node, nil
}

// Specs

// CreateSpec persists a new service chain spec
func (m *Manager) CreateSpec(ctx context.Context, req *domain.ServiceChainSpec) (*domain.ServiceChainSpec, error) {
	start := time.Now()
	spec, err := m.createSpec(ctx, req)
	m.record("create_spec", start, err)
	return spec, err
}

func (m *Manager) createSpec(ctx context.Context, req *domain.ServiceChainSpec) (*domain.ServiceChainSpec, error) {
	if err := m.validator.ValidateSpec(req); err != nil {
		return nil, err
	}
	tenantID, err := domain.CallerFrom(ctx).TenantFor(req.TenantID)
	if err != nil {
		return nil, err
	}

	spec := req.Clone()
	spec.ID = newID(req.ID)
	spec.TenantID = tenantID
	spec.CreatedAt = m.now()
	spec.InstanceIDs = nil

	var created *domain.ServiceChainSpec
	err = m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		err := tx.Savepoint(ctx, func(tx ports.Tx) error {
			if err := m.validator.CheckSpecReferences(ctx, tx, spec); err != nil {
				return err
			}
			return m.guard.ValidateSharedCreate(ctx, tx, spec)
		})
		if err != nil {
			return err
		}
		if err := tx.CreateSpec(ctx, spec); err != nil {
			return err
		}
		created, err = tx.GetSpec(ctx, spec.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, domain.EventTypeSpecCreated, created.ID, created.TenantID, map[string]interface{}{
		"nodes": len(created.NodeIDs),
	})
	m.logger.Info("service chain spec created",
		zap.String("spec_id", created.ID),
		zap.Int("nodes", len(created.NodeIDs)))
	return created, nil
}

// UpdateSpec updates a spec. Running instances are not redeployed.
func (m *Manager) UpdateSpec(ctx context.Context, id string, update domain.SpecUpdate) (*domain.ServiceChainSpec, error) {
	start := time.Now()
	spec, err := m.updateSpec(ctx, id, update)
	m.record("update_spec", start, err)
	return spec, err
}

func (m *Manager) updateSpec(ctx context.Context, id string, update domain.SpecUpdate) (*domain.ServiceChainSpec, error) {
	var updated *domain.ServiceChainSpec
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		original, err := m.loadSpec(ctx, tx, id)
		if err != nil {
			return err
		}

		next := update.Apply(original)
		if err := m.validator.ValidateSpec(next); err != nil {
			return err
		}
		err = tx.Savepoint(ctx, func(tx ports.Tx) error {
			if err := m.validator.CheckSpecReferences(ctx, tx, next); err != nil {
				return err
			}
			return m.guard.ValidateSharedUpdate(ctx, tx, original, next)
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateSpec(ctx, next); err != nil {
			return err
		}
		updated, err = tx.GetSpec(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, domain.EventTypeSpecUpdated, id, updated.TenantID, nil)
	return updated, nil
}

// DeleteSpec deletes a spec no instance references
func (m *Manager) DeleteSpec(ctx context.Context, id string) error {
	start := time.Now()
	var tenantID string
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		spec, err := m.loadSpec(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ownedBy(domain.CallerFrom(ctx), domain.KindSpec, id, spec.TenantID); err != nil {
			return err
		}
		if len(spec.InstanceIDs) > 0 {
			return &domain.InUseError{Kind: domain.KindSpec, ID: id, UsedBy: domain.KindInstance + " " + spec.InstanceIDs[0]}
		}
		tenantID = spec.TenantID
		return tx.DeleteSpec(ctx, id)
	})
	m.record("delete_spec", start, err)
	if err != nil {
		return err
	}

	m.publish(ctx, domain.EventTypeSpecDeleted, id, tenantID, nil)
	return nil
}

// GetSpec returns a spec visible to the caller
func (m *Manager) GetSpec(ctx context.Context, id string) (*domain.ServiceChainSpec, error) {
	var spec *domain.ServiceChainSpec
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		var err error
		spec, err = m.loadSpec(ctx, tx, id)
		return err
	})
	return spec, err
}

// ListSpecs returns the specs visible to the caller
func (m *Manager) ListSpecs(ctx context.Context) ([]*domain.ServiceChainSpec, error) {
	var out []*domain.ServiceChainSpec
	err := m.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		all, err := tx.ListSpecs(ctx, "")
		if err != nil {
			return err
		}
		out = visible(ctx, all, func(s *domain.ServiceChainSpec) (string, bool) { return s.TenantID, s.Shared })
		return nil
	})
	return out, err
}

func (m *Manager) loadSpec(ctx context.Context, tx ports.Tx, id string) (*domain.ServiceChainSpec, error) {
	spec, err := tx.GetSpec(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CallerFrom(ctx).CanSee(spec.TenantID, spec.Shared) {
		return nil, &domain.NotFoundError{Kind: domain.KindSpec, ID: id}
	}
	return spec, nil
}

// visible filters entities down to those the caller may see
func visible[T any](ctx context.Context, all []T, owner func(T) (string, bool)) []T {
	caller := domain.CallerFrom(ctx)
	out := make([]T, 0, len(all))
	for _, e := range all {
		tenantID, shared := owner(e)
		if caller.CanSee(tenantID, shared) {
			out = append(out, e)
		}
	}
	return out
}
