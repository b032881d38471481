package sharing

import (
	"context"
	"fmt"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
)

var _ ports.SharingGuard = (*Guard)(nil)

// Guard enforces ownership and sharing rules for chain entities:
//   - a non-admin caller only creates or modifies entities of its own tenant
//   - a referenced entity must be shared or visible to the caller
//   - a shared node needs a shared profile and a shared spec needs shared nodes
//   - a shared entity stays shared while another tenant or a shared entity uses it
type Guard struct{}

// NewGuard creates a sharing guard
func NewGuard() *Guard {
	return &Guard{}
}

// ValidateSharedCreate checks a new entity against the sharing rules
func (g *Guard) ValidateSharedCreate(ctx context.Context, tx ports.Tx, entity interface{}) error {
	caller := domain.CallerFrom(ctx)
	switch e := entity.(type) {
	case *domain.ServiceProfile:
		return checkOwner(caller, domain.KindProfile, e.ID, e.TenantID)
	case *domain.ServiceChainNode:
		if err := checkOwner(caller, domain.KindNode, e.ID, e.TenantID); err != nil {
			return err
		}
		return g.checkNodeReferences(ctx, tx, caller, e)
	case *domain.ServiceChainSpec:
		if err := checkOwner(caller, domain.KindSpec, e.ID, e.TenantID); err != nil {
			return err
		}
		return g.checkSpecReferences(ctx, tx, caller, e)
	case *domain.ServiceChainInstance:
		if err := checkOwner(caller, domain.KindInstance, e.ID, e.TenantID); err != nil {
			return err
		}
		return g.checkInstanceReferences(ctx, tx, caller, e)
	default:
		return fmt.Errorf("sharing guard: unsupported entity %T", entity)
	}
}

// ValidateSharedUpdate checks an update of original into updated
func (g *Guard) ValidateSharedUpdate(ctx context.Context, tx ports.Tx, original, updated interface{}) error {
	caller := domain.CallerFrom(ctx)
	switch o := original.(type) {
	case *domain.ServiceProfile:
		u, ok := updated.(*domain.ServiceProfile)
		if !ok {
			return mismatch(original, updated)
		}
		if err := checkOwner(caller, domain.KindProfile, o.ID, o.TenantID); err != nil {
			return err
		}
		if o.Shared && !u.Shared {
			return g.checkProfileUnshare(ctx, tx, u)
		}
		return nil
	case *domain.ServiceChainNode:
		u, ok := updated.(*domain.ServiceChainNode)
		if !ok {
			return mismatch(original, updated)
		}
		if err := checkOwner(caller, domain.KindNode, o.ID, o.TenantID); err != nil {
			return err
		}
		if err := g.checkNodeReferences(ctx, tx, caller, u); err != nil {
			return err
		}
		if o.Shared && !u.Shared {
			return g.checkNodeUnshare(ctx, tx, u)
		}
		return nil
	case *domain.ServiceChainSpec:
		u, ok := updated.(*domain.ServiceChainSpec)
		if !ok {
			return mismatch(original, updated)
		}
		if err := checkOwner(caller, domain.KindSpec, o.ID, o.TenantID); err != nil {
			return err
		}
		if err := g.checkSpecReferences(ctx, tx, caller, u); err != nil {
			return err
		}
		if o.Shared && !u.Shared {
			return g.checkSpecUnshare(ctx, tx, u)
		}
		return nil
	case *domain.ServiceChainInstance:
		u, ok := updated.(*domain.ServiceChainInstance)
		if !ok {
			return mismatch(original, updated)
		}
		if err := checkOwner(caller, domain.KindInstance, o.ID, o.TenantID); err != nil {
			return err
		}
		return g.checkInstanceReferences(ctx, tx, caller, u)
	default:
		return fmt.Errorf("sharing guard: unsupported entity %T", original)
	}
}

func checkOwner(caller domain.Caller, kind, id, tenantID string) error {
	if caller.IsAdmin || caller.TenantID == tenantID {
		return nil
	}
	return &domain.SharingError{Kind: kind, ID: id, Reason: "owned by another tenant"}
}

func mismatch(original, updated interface{}) error {
	return fmt.Errorf("sharing guard: cannot compare %T with %T", original, updated)
}

func (g *Guard) checkNodeReferences(ctx context.Context, tx ports.Tx, caller domain.Caller, n *domain.ServiceChainNode) error {
	if n.ProfileID == "" {
		return nil
	}
	profile, err := tx.GetProfile(ctx, n.ProfileID)
	if err != nil {
		return err
	}
	if !caller.CanSee(profile.TenantID, profile.Shared) {
		return &domain.SharingError{Kind: domain.KindNode, ID: n.ID,
			Reason: fmt.Sprintf("service profile %s is not shared", profile.ID)}
	}
	if n.Shared && !profile.Shared {
		return &domain.SharingError{Kind: domain.KindNode, ID: n.ID,
			Reason: fmt.Sprintf("shared node cannot use non-shared service profile %s", profile.ID)}
	}
	return nil
}

func (g *Guard) checkSpecReferences(ctx context.Context, tx ports.Tx, caller domain.Caller, s *domain.ServiceChainSpec) error {
	nodes, err := tx.GetNodes(ctx, s.NodeIDs)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if !caller.CanSee(n.TenantID, n.Shared) {
			return &domain.SharingError{Kind: domain.KindSpec, ID: s.ID,
				Reason: fmt.Sprintf("node %s is not shared", n.ID)}
		}
		if s.Shared && !n.Shared {
			return &domain.SharingError{Kind: domain.KindSpec, ID: s.ID,
				Reason: fmt.Sprintf("shared spec cannot include non-shared node %s", n.ID)}
		}
	}
	return nil
}

func (g *Guard) checkInstanceReferences(ctx context.Context, tx ports.Tx, caller domain.Caller, i *domain.ServiceChainInstance) error {
	specs, err := tx.GetSpecs(ctx, i.SpecIDs)
	if err != nil {
		return err
	}
	for _, s := range specs {
		if !caller.CanSee(s.TenantID, s.Shared) {
			return &domain.SharingError{Kind: domain.KindInstance, ID: i.ID,
				Reason: fmt.Sprintf("spec %s is not shared", s.ID)}
		}
	}
	return nil
}

func (g *Guard) checkProfileUnshare(ctx context.Context, tx ports.Tx, p *domain.ServiceProfile) error {
	current, err := tx.GetProfile(ctx, p.ID)
	if err != nil {
		return err
	}
	nodes, err := tx.GetNodes(ctx, current.NodeIDs)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if n.TenantID != p.TenantID || n.Shared {
			return &domain.SharingError{Kind: domain.KindProfile, ID: p.ID,
				Reason: fmt.Sprintf("cannot unshare, used by node %s", n.ID)}
		}
	}
	return nil
}

func (g *Guard) checkNodeUnshare(ctx context.Context, tx ports.Tx, n *domain.ServiceChainNode) error {
	current, err := tx.GetNode(ctx, n.ID)
	if err != nil {
		return err
	}
	specs, err := tx.GetSpecs(ctx, current.SpecIDs)
	if err != nil {
		return err
	}
	for _, s := range specs {
		if s.TenantID != n.TenantID || s.Shared {
			return &domain.SharingError{Kind: domain.KindNode, ID: n.ID,
				Reason: fmt.Sprintf("cannot unshare, used by spec %s", s.ID)}
		}
	}
	return nil
}

func (g *Guard) checkSpecUnshare(ctx context.Context, tx ports.Tx, s *domain.ServiceChainSpec) error {
	current, err := tx.GetSpec(ctx, s.ID)
	if err != nil {
		return err
	}
	instances, err := tx.GetInstances(ctx, current.InstanceIDs)
	if err != nil {
		return err
	}
	for _, i := range instances {
		if i.TenantID != s.TenantID {
			return &domain.SharingError{Kind: domain.KindSpec, ID: s.ID,
				Reason: fmt.Sprintf("cannot unshare, used by instance %s of another tenant", i.ID)}
		}
	}
	return nil
}
