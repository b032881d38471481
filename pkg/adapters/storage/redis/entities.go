package redis

import (
	"context"
	"sort"

	"github.com/aescanero/nodecomp/pkg/domain"
)

func byCreation(ts1 int64, id1 string, ts2 int64, id2 string) bool {
	if ts1 != ts2 {
		return ts1 < ts2
	}
	return id1 < id2
}

func containsID(values []string, id string) bool {
	for _, v := range values {
		if v == id {
			return true
		}
	}
	return false
}

// Profiles

func (t *txn) CreateProfile(ctx context.Context, p *domain.ServiceProfile) error {
	doc := p.Clone()
	doc.NodeIDs = nil
	return t.create(ctx, kindProfile, p.ID, doc)
}

func (t *txn) GetProfile(ctx context.Context, id string) (*domain.ServiceProfile, error) {
	p, ok, err := load[domain.ServiceProfile](ctx, t, kindProfile, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindProfile, ID: id}
	}
	return p, t.decorateProfiles(ctx, []*domain.ServiceProfile{p})
}

func (t *txn) GetProfiles(ctx context.Context, ids []string) ([]*domain.ServiceProfile, error) {
	out, err := loadMany[domain.ServiceProfile](ctx, t, kindProfile, ids)
	if err != nil {
		return nil, err
	}
	return out, t.decorateProfiles(ctx, out)
}

func (t *txn) ListProfiles(ctx context.Context, tenantID string) ([]*domain.ServiceProfile, error) {
	all, err := loadAll[domain.ServiceProfile](ctx, t, kindProfile)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ServiceProfile, 0, len(all))
	for _, p := range all {
		if tenantID == "" || p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return byCreation(out[i].CreatedAt.UnixNano(), out[i].ID, out[j].CreatedAt.UnixNano(), out[j].ID)
	})
	return out, t.decorateProfiles(ctx, out)
}

func (t *txn) UpdateProfile(ctx context.Context, p *domain.ServiceProfile) error {
	doc := p.Clone()
	doc.NodeIDs = nil
	return t.replace(ctx, kindProfile, domain.KindProfile, p.ID, doc)
}

func (t *txn) DeleteProfile(ctx context.Context, id string) error {
	return t.drop(ctx, kindProfile, domain.KindProfile, id)
}

func (t *txn) decorateProfiles(ctx context.Context, profiles []*domain.ServiceProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	nodes, err := t.sortedNodes(ctx)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		p.NodeIDs = nil
		for _, n := range nodes {
			if n.ProfileID == p.ID {
				p.NodeIDs = append(p.NodeIDs, n.ID)
			}
		}
	}
	return nil
}

// Nodes

func (t *txn) CreateNode(ctx context.Context, n *domain.ServiceChainNode) error {
	doc := n.Clone()
	doc.SpecIDs = nil
	return t.create(ctx, kindNode, n.ID, doc)
}

func (t *txn) GetNode(ctx context.Context, id string) (*domain.ServiceChainNode, error) {
	n, ok, err := load[domain.ServiceChainNode](ctx, t, kindNode, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindNode, ID: id}
	}
	return n, t.decorateNodes(ctx, []*domain.ServiceChainNode{n})
}

func (t *txn) GetNodes(ctx context.Context, ids []string) ([]*domain.ServiceChainNode, error) {
	out, err := loadMany[domain.ServiceChainNode](ctx, t, kindNode, ids)
	if err != nil {
		return nil, err
	}
	return out, t.decorateNodes(ctx, out)
}

func (t *txn) ListNodes(ctx context.Context, tenantID string) ([]*domain.ServiceChainNode, error) {
	all, err := t.sortedNodes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ServiceChainNode, 0, len(all))
	for _, n := range all {
		if tenantID == "" || n.TenantID == tenantID {
			out = append(out, n)
		}
	}
	return out, t.decorateNodes(ctx, out)
}

func (t *txn) UpdateNode(ctx context.Context, n *domain.ServiceChainNode) error {
	doc := n.Clone()
	doc.SpecIDs = nil
	return t.replace(ctx, kindNode, domain.KindNode, n.ID, doc)
}

func (t *txn) DeleteNode(ctx context.Context, id string) error {
	return t.drop(ctx, kindNode, domain.KindNode, id)
}

func (t *txn) sortedNodes(ctx context.Context) ([]*domain.ServiceChainNode, error) {
	nodes, err := loadAll[domain.ServiceChainNode](ctx, t, kindNode)
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool {
		return byCreation(nodes[i].CreatedAt.UnixNano(), nodes[i].ID, nodes[j].CreatedAt.UnixNano(), nodes[j].ID)
	})
	return nodes, nil
}

func (t *txn) decorateNodes(ctx context.Context, nodes []*domain.ServiceChainNode) error {
	if len(nodes) == 0 {
		return nil
	}
	specs, err := t.sortedSpecs(ctx)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		n.SpecIDs = nil
		for _, s := range specs {
			if containsID(s.NodeIDs, n.ID) {
				n.SpecIDs = append(n.SpecIDs, s.ID)
			}
		}
	}
	return nil
}

// Specs

func (t *txn) CreateSpec(ctx context.Context, s *domain.ServiceChainSpec) error {
	doc := s.Clone()
	doc.InstanceIDs = nil
	return t.create(ctx, kindSpec, s.ID, doc)
}

func (t *txn) GetSpec(ctx context.Context, id string) (*domain.ServiceChainSpec, error) {
	s, ok, err := load[domain.ServiceChainSpec](ctx, t, kindSpec, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindSpec, ID: id}
	}
	return s, t.decorateSpecs(ctx, []*domain.ServiceChainSpec{s})
}

func (t *txn) GetSpecs(ctx context.Context, ids []string) ([]*domain.ServiceChainSpec, error) {
	out, err := loadMany[domain.ServiceChainSpec](ctx, t, kindSpec, ids)
	if err != nil {
		return nil, err
	}
	return out, t.decorateSpecs(ctx, out)
}

func (t *txn) ListSpecs(ctx context.Context, tenantID string) ([]*domain.ServiceChainSpec, error) {
	all, err := t.sortedSpecs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ServiceChainSpec, 0, len(all))
	for _, s := range all {
		if tenantID == "" || s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, t.decorateSpecs(ctx, out)
}

func (t *txn) UpdateSpec(ctx context.Context, s *domain.ServiceChainSpec) error {
	doc := s.Clone()
	doc.InstanceIDs = nil
	return t.replace(ctx, kindSpec, domain.KindSpec, s.ID, doc)
}

func (t *txn) DeleteSpec(ctx context.Context, id string) error {
	return t.drop(ctx, kindSpec, domain.KindSpec, id)
}

func (t *txn) sortedSpecs(ctx context.Context) ([]*domain.ServiceChainSpec, error) {
	specs, err := loadAll[domain.ServiceChainSpec](ctx, t, kindSpec)
	if err != nil {
		return nil, err
	}
	sort.Slice(specs, func(i, j int) bool {
		return byCreation(specs[i].CreatedAt.UnixNano(), specs[i].ID, specs[j].CreatedAt.UnixNano(), specs[j].ID)
	})
	return specs, nil
}

func (t *txn) decorateSpecs(ctx context.Context, specs []*domain.ServiceChainSpec) error {
	if len(specs) == 0 {
		return nil
	}
	instances, err := t.sortedInstances(ctx)
	if err != nil {
		return err
	}
	for _, s := range specs {
		s.InstanceIDs = nil
		for _, i := range instances {
			if containsID(i.SpecIDs, s.ID) {
				s.InstanceIDs = append(s.InstanceIDs, i.ID)
			}
		}
	}
	return nil
}

// Instances

func (t *txn) CreateInstance(ctx context.Context, i *domain.ServiceChainInstance) error {
	return t.create(ctx, kindInstance, i.ID, i)
}

func (t *txn) GetInstance(ctx context.Context, id string) (*domain.ServiceChainInstance, error) {
	i, ok, err := load[domain.ServiceChainInstance](ctx, t, kindInstance, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindInstance, ID: id}
	}
	return i, nil
}

func (t *txn) GetInstances(ctx context.Context, ids []string) ([]*domain.ServiceChainInstance, error) {
	return loadMany[domain.ServiceChainInstance](ctx, t, kindInstance, ids)
}

func (t *txn) ListInstances(ctx context.Context, tenantID string) ([]*domain.ServiceChainInstance, error) {
	all, err := t.sortedInstances(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ServiceChainInstance, 0, len(all))
	for _, i := range all {
		if tenantID == "" || i.TenantID == tenantID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (t *txn) UpdateInstance(ctx context.Context, i *domain.ServiceChainInstance) error {
	return t.replace(ctx, kindInstance, domain.KindInstance, i.ID, i)
}

func (t *txn) DeleteInstance(ctx context.Context, id string) error {
	return t.drop(ctx, kindInstance, domain.KindInstance, id)
}

func (t *txn) sortedInstances(ctx context.Context) ([]*domain.ServiceChainInstance, error) {
	instances, err := loadAll[domain.ServiceChainInstance](ctx, t, kindInstance)
	if err != nil {
		return nil, err
	}
	sort.Slice(instances, func(i, j int) bool {
		return byCreation(instances[i].CreatedAt.UnixNano(), instances[i].ID, instances[j].CreatedAt.UnixNano(), instances[j].ID)
	})
	return instances, nil
}

// InstanceUsingProfile walks profile -> nodes -> specs -> instances
func (t *txn) InstanceUsingProfile(ctx context.Context, profileID string) (string, error) {
	nodes, err := t.sortedNodes(ctx)
	if err != nil {
		return "", err
	}
	usesProfile := make(map[string]bool)
	for _, n := range nodes {
		if n.ProfileID == profileID {
			usesProfile[n.ID] = true
		}
	}
	if len(usesProfile) == 0 {
		return "", nil
	}

	specs, err := t.sortedSpecs(ctx)
	if err != nil {
		return "", err
	}
	matching := make(map[string]bool)
	for _, s := range specs {
		for _, nodeID := range s.NodeIDs {
			if usesProfile[nodeID] {
				matching[s.ID] = true
				break
			}
		}
	}

	instances, err := t.sortedInstances(ctx)
	if err != nil {
		return "", err
	}
	for _, i := range instances {
		for _, specID := range i.SpecIDs {
			if matching[specID] {
				return i.ID, nil
			}
		}
	}
	return "", nil
}
