package orchestrator

import (
	"context"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
)

// scheduleInstance binds one driver to every node of the instance's spec.
// Nodes appear once, in spec order. Scheduling has no side effects, so the
// caller's transaction may still abort safely. Drivers consulted here read
// the chain through tx; call release once tx has committed.
func (m *Manager) scheduleInstance(ctx context.Context, tx ports.Tx, action domain.Action, instance *domain.ServiceChainInstance) ([]*ports.ScheduledOp, error) {
	specID := instance.SpecID()
	if specID == "" {
		return nil, nil
	}

	spec, err := tx.GetSpec(ctx, specID)
	if err != nil {
		return nil, err
	}
	nodes, err := tx.GetNodes(ctx, spec.NodeIDs)
	if err != nil {
		return nil, err
	}

	caller := domain.CallerFrom(ctx)
	chain := &txChain{m: m, tx: tx}
	profiles := make(map[string]*domain.ServiceProfile)
	seen := make(map[string]bool, len(nodes))
	batch := make([]*ports.ScheduledOp, 0, len(nodes))

	for _, node := range nodes {
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true

		profile, err := nodeProfile(ctx, tx, node.ProfileID, profiles)
		if err != nil {
			return nil, err
		}

		nc := &ports.NodeContext{
			Chain:          chain,
			Caller:         caller,
			Instance:       instance.Clone(),
			Spec:           spec,
			CurrentNode:    node,
			CurrentProfile: profile,
		}

		driver := m.scheduleFor(action, nc)
		if driver == nil {
			m.metrics.RecordSchedulingFailure(string(action))
			return nil, &domain.NoDriverAvailableError{Action: action, NodeID: node.ID}
		}

		batch = append(batch, &ports.ScheduledOp{
			Key:      node.ID,
			Driver:   driver,
			Context:  nc,
			Plumbing: driver.GetPlumbingInfo(nc),
		})
	}

	return batch, nil
}

// scheduleNodeUpdate binds an update driver for every instance running the
// node, keyed by instance id. Like scheduleInstance it reads through tx.
func (m *Manager) scheduleNodeUpdate(ctx context.Context, tx ports.Tx, original, updated *domain.ServiceChainNode) ([]*ports.ScheduledOp, error) {
	specs, err := tx.GetSpecs(ctx, original.SpecIDs)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*domain.ServiceProfile)
	originalProfile, err := nodeProfile(ctx, tx, original.ProfileID, profiles)
	if err != nil {
		return nil, err
	}
	currentProfile, err := nodeProfile(ctx, tx, updated.ProfileID, profiles)
	if err != nil {
		return nil, err
	}

	caller := domain.CallerFrom(ctx)
	chain := &txChain{m: m, tx: tx}
	seen := make(map[string]bool)
	var batch []*ports.ScheduledOp

	for _, spec := range specs {
		instances, err := tx.GetInstances(ctx, spec.InstanceIDs)
		if err != nil {
			return nil, err
		}
		for _, instance := range instances {
			if seen[instance.ID] {
				continue
			}
			seen[instance.ID] = true

			nc := &ports.NodeContext{
				Chain:           chain,
				Caller:          caller,
				Instance:        instance,
				Spec:            spec,
				CurrentNode:     updated,
				CurrentProfile:  currentProfile,
				OriginalNode:    original,
				OriginalProfile: originalProfile,
			}

			driver := m.registry.ScheduleUpdate(nc)
			if driver == nil {
				m.metrics.RecordSchedulingFailure(string(domain.ActionUpdate))
				return nil, &domain.NoDriverAvailableError{Action: domain.ActionUpdate, NodeID: original.ID}
			}

			batch = append(batch, &ports.ScheduledOp{
				Key:      instance.ID,
				Driver:   driver,
				Context:  nc,
				Plumbing: driver.GetPlumbingInfo(nc),
			})
		}
	}

	return batch, nil
}

func (m *Manager) scheduleFor(action domain.Action, nc *ports.NodeContext) ports.NodeDriver {
	switch action {
	case domain.ActionDeploy:
		return m.registry.ScheduleDeploy(nc)
	case domain.ActionUpdate:
		return m.registry.ScheduleUpdate(nc)
	case domain.ActionDestroy:
		return m.registry.ScheduleDestroy(nc)
	default:
		return nil
	}
}

// nodeProfile resolves a node's profile through a per-call cache. Nodes
// without a profile get nil, which no driver accepts.
func nodeProfile(ctx context.Context, tx ports.Tx, profileID string, cache map[string]*domain.ServiceProfile) (*domain.ServiceProfile, error) {
	if profileID == "" {
		return nil, nil
	}
	if p, ok := cache[profileID]; ok {
		return p, nil
	}
	p, err := tx.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	cache[profileID] = p
	return p, nil
}

// release rebinds the node contexts of committed batches to the manager,
// so execution-phase reads no longer go through the finished transaction.
func (m *Manager) release(batches ...[]*ports.ScheduledOp) {
	for _, batch := range batches {
		for _, op := range batch {
			op.Context.Chain = m
		}
	}
}

// txChain serves driver reads during scheduling from the open transaction.
// Reads see the transaction's own writes and never reenter the store.
type txChain struct {
	m  *Manager
	tx ports.Tx
}

var _ ports.ChainReader = (*txChain)(nil)

func (c *txChain) GetInstance(ctx context.Context, id string) (*domain.ServiceChainInstance, error) {
	return c.m.loadInstance(ctx, c.tx, id)
}

func (c *txChain) GetSpec(ctx context.Context, id string) (*domain.ServiceChainSpec, error) {
	return c.m.loadSpec(ctx, c.tx, id)
}

func (c *txChain) GetNode(ctx context.Context, id string) (*domain.ServiceChainNode, error) {
	return c.m.loadNode(ctx, c.tx, id)
}

func (c *txChain) GetProfile(ctx context.Context, id string) (*domain.ServiceProfile, error) {
	return c.m.loadProfile(ctx, c.tx, id)
}
