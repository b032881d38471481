package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
)

var _ ports.EntityStore = (*EntityStore)(nil)

// EntityStore implements ports.EntityStore with in-memory maps.
// Transactions run serially against a cloned state that replaces the
// committed state on success.
type EntityStore struct {
	state state
	mu    sync.Mutex
}

type state struct {
	profiles  map[string]*domain.ServiceProfile
	nodes     map[string]*domain.ServiceChainNode
	specs     map[string]*domain.ServiceChainSpec
	instances map[string]*domain.ServiceChainInstance
}

// NewEntityStore creates an empty in-memory entity store
func NewEntityStore() *EntityStore {
	return &EntityStore{state: newState()}
}

func newState() state {
	return state{
		profiles:  make(map[string]*domain.ServiceProfile),
		nodes:     make(map[string]*domain.ServiceChainNode),
		specs:     make(map[string]*domain.ServiceChainSpec),
		instances: make(map[string]*domain.ServiceChainInstance),
	}
}

func (s state) clone() state {
	out := newState()
	for id, p := range s.profiles {
		out.profiles[id] = p.Clone()
	}
	for id, n := range s.nodes {
		out.nodes[id] = n.Clone()
	}
	for id, sp := range s.specs {
		out.specs[id] = sp.Clone()
	}
	for id, i := range s.instances {
		out.instances[id] = i.Clone()
	}
	return out
}

// RunInTransaction runs fn against a private copy of the state
func (s *EntityStore) RunInTransaction(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Close is a no-op
func (s *EntityStore) Close() error {
	return nil
}

type txn struct {
	state state
}

func (t *txn) Savepoint(ctx context.Context, fn func(tx ports.Tx) error) error {
	snapshot := t.state.clone()
	if err := fn(t); err != nil {
		t.state = snapshot
		return err
	}
	return nil
}

// Profiles

func (t *txn) CreateProfile(ctx context.Context, p *domain.ServiceProfile) error {
	if _, exists := t.state.profiles[p.ID]; exists {
		return fmt.Errorf("profile %s already exists: %w", p.ID, domain.ErrConflict)
	}
	stored := p.Clone()
	stored.NodeIDs = nil
	t.state.profiles[p.ID] = stored
	return nil
}

func (t *txn) GetProfile(ctx context.Context, id string) (*domain.ServiceProfile, error) {
	p, ok := t.state.profiles[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindProfile, ID: id}
	}
	return t.decorateProfile(p), nil
}

func (t *txn) GetProfiles(ctx context.Context, ids []string) ([]*domain.ServiceProfile, error) {
	out := make([]*domain.ServiceProfile, 0, len(ids))
	for _, id := range ids {
		if p, ok := t.state.profiles[id]; ok {
			out = append(out, t.decorateProfile(p))
		}
	}
	return out, nil
}

func (t *txn) ListProfiles(ctx context.Context, tenantID string) ([]*domain.ServiceProfile, error) {
	out := make([]*domain.ServiceProfile, 0, len(t.state.profiles))
	for _, p := range t.state.profiles {
		if tenantID == "" || p.TenantID == tenantID {
			out = append(out, t.decorateProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt.UnixNano(), out[i].ID, out[j].CreatedAt.UnixNano(), out[j].ID) })
	return out, nil
}

func (t *txn) UpdateProfile(ctx context.Context, p *domain.ServiceProfile) error {
	if _, ok := t.state.profiles[p.ID]; !ok {
		return &domain.NotFoundError{Kind: domain.KindProfile, ID: p.ID}
	}
	stored := p.Clone()
	stored.NodeIDs = nil
	t.state.profiles[p.ID] = stored
	return nil
}

func (t *txn) DeleteProfile(ctx context.Context, id string) error {
	if _, ok := t.state.profiles[id]; !ok {
		return &domain.NotFoundError{Kind: domain.KindProfile, ID: id}
	}
	delete(t.state.profiles, id)
	return nil
}

func (t *txn) decorateProfile(p *domain.ServiceProfile) *domain.ServiceProfile {
	out := p.Clone()
	var nodes []*domain.ServiceChainNode
	for _, n := range t.state.nodes {
		if n.ProfileID == p.ID {
			nodes = append(nodes, n)
		}
	}
	sortNodes(nodes)
	for _, n := range nodes {
		out.NodeIDs = append(out.NodeIDs, n.ID)
	}
	return out
}

// Nodes

func (t *txn) CreateNode(ctx context.Context, n *domain.ServiceChainNode) error {
	if _, exists := t.state.nodes[n.ID]; exists {
		return fmt.Errorf("node %s already exists: %w", n.ID, domain.ErrConflict)
	}
	stored := n.Clone()
	stored.SpecIDs = nil
	t.state.nodes[n.ID] = stored
	return nil
}

func (t *txn) GetNode(ctx context.Context, id string) (*domain.ServiceChainNode, error) {
	n, ok := t.state.nodes[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindNode, ID: id}
	}
	return t.decorateNode(n), nil
}

func (t *txn) GetNodes(ctx context.Context, ids []string) ([]*domain.ServiceChainNode, error) {
	out := make([]*domain.ServiceChainNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := t.state.nodes[id]; ok {
			out = append(out, t.decorateNode(n))
		}
	}
	return out, nil
}

func (t *txn) ListNodes(ctx context.Context, tenantID string) ([]*domain.ServiceChainNode, error) {
	var nodes []*domain.ServiceChainNode
	for _, n := range t.state.nodes {
		if tenantID == "" || n.TenantID == tenantID {
			nodes = append(nodes, n)
		}
	}
	sortNodes(nodes)
	out := make([]*domain.ServiceChainNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, t.decorateNode(n))
	}
	return out, nil
}

func (t *txn) UpdateNode(ctx context.Context, n *domain.ServiceChainNode) error {
	if _, ok := t.state.nodes[n.ID]; !ok {
		return &domain.NotFoundError{Kind: domain.KindNode, ID: n.ID}
	}
	stored := n.Clone()
	stored.SpecIDs = nil
	t.state.nodes[n.ID] = stored
	return nil
}

func (t *txn) DeleteNode(ctx context.Context, id string) error {
	if _, ok := t.state.nodes[id]; !ok {
		return &domain.NotFoundError{Kind: domain.KindNode, ID: id}
	}
	delete(t.state.nodes, id)
	return nil
}

func (t *txn) decorateNode(n *domain.ServiceChainNode) *domain.ServiceChainNode {
	out := n.Clone()
	var specs []*domain.ServiceChainSpec
	for _, s := range t.state.specs {
		if contains(s.NodeIDs, n.ID) {
			specs = append(specs, s)
		}
	}
	sort.Slice(specs, func(i, j int) bool {
		return before(specs[i].CreatedAt.UnixNano(), specs[i].ID, specs[j].CreatedAt.UnixNano(), specs[j].ID)
	})
	for _, s := range specs {
		out.SpecIDs = append(out.SpecIDs, s.ID)
	}
	return out
}

// Specs

func (t *txn) CreateSpec(ctx context.Context, s *domain.ServiceChainSpec) error {
	if _, exists := t.state.specs[s.ID]; exists {
		return fmt.Errorf("spec %s already exists: %w", s.ID, domain.ErrConflict)
	}
	stored := s.Clone()
	stored.InstanceIDs = nil
	t.state.specs[s.ID] = stored
	return nil
}

func (t *txn) GetSpec(ctx context.Context, id string) (*domain.ServiceChainSpec, error) {
	s, ok := t.state.specs[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindSpec, ID: id}
	}
	return t.decorateSpec(s), nil
}

func (t *txn) GetSpecs(ctx context.Context, ids []string) ([]*domain.ServiceChainSpec, error) {
	out := make([]*domain.ServiceChainSpec, 0, len(ids))
	for _, id := range ids {
		if s, ok := t.state.specs[id]; ok {
			out = append(out, t.decorateSpec(s))
		}
	}
	return out, nil
}

func (t *txn) ListSpecs(ctx context.Context, tenantID string) ([]*domain.ServiceChainSpec, error) {
	out := make([]*domain.ServiceChainSpec, 0, len(t.state.specs))
	for _, s := range t.state.specs {
		if tenantID == "" || s.TenantID == tenantID {
			out = append(out, t.decorateSpec(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt.UnixNano(), out[i].ID, out[j].CreatedAt.UnixNano(), out[j].ID) })
	return out, nil
}

func (t *txn) UpdateSpec(ctx context.Context, s *domain.ServiceChainSpec) error {
	if _, ok := t.state.specs[s.ID]; !ok {
		return &domain.NotFoundError{Kind: domain.KindSpec, ID: s.ID}
	}
	stored := s.Clone()
	stored.InstanceIDs = nil
	t.state.specs[s.ID] = stored
	return nil
}

func (t *txn) DeleteSpec(ctx context.Context, id string) error {
	if _, ok := t.state.specs[id]; !ok {
		return &domain.NotFoundError{Kind: domain.KindSpec, ID: id}
	}
	delete(t.state.specs, id)
	return nil
}

func (t *txn) decorateSpec(s *domain.ServiceChainSpec) *domain.ServiceChainSpec {
	out := s.Clone()
	var instances []*domain.ServiceChainInstance
	for _, i := range t.state.instances {
		if contains(i.SpecIDs, s.ID) {
			instances = append(instances, i)
		}
	}
	sortInstances(instances)
	for _, i := range instances {
		out.InstanceIDs = append(out.InstanceIDs, i.ID)
	}
	return out
}

// Instances

func (t *txn) CreateInstance(ctx context.Context, i *domain.ServiceChainInstance) error {
	if _, exists := t.state.instances[i.ID]; exists {
		return fmt.Errorf("instance %s already exists: %w", i.ID, domain.ErrConflict)
	}
	t.state.instances[i.ID] = i.Clone()
	return nil
}

func (t *txn) GetInstance(ctx context.Context, id string) (*domain.ServiceChainInstance, error) {
	i, ok := t.state.instances[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.KindInstance, ID: id}
	}
	return i.Clone(), nil
}

func (t *txn) GetInstances(ctx context.Context, ids []string) ([]*domain.ServiceChainInstance, error) {
	out := make([]*domain.ServiceChainInstance, 0, len(ids))
	for _, id := range ids {
		if i, ok := t.state.instances[id]; ok {
			out = append(out, i.Clone())
		}
	}
	return out, nil
}

func (t *txn) ListInstances(ctx context.Context, tenantID string) ([]*domain.ServiceChainInstance, error) {
	var instances []*domain.ServiceChainInstance
	for _, i := range t.state.instances {
		if tenantID == "" || i.TenantID == tenantID {
			instances = append(instances, i)
		}
	}
	sortInstances(instances)
	out := make([]*domain.ServiceChainInstance, 0, len(instances))
	for _, i := range instances {
		out = append(out, i.Clone())
	}
	return out, nil
}

func (t *txn) UpdateInstance(ctx context.Context, i *domain.ServiceChainInstance) error {
	if _, ok := t.state.instances[i.ID]; !ok {
		return &domain.NotFoundError{Kind: domain.KindInstance, ID: i.ID}
	}
	t.state.instances[i.ID] = i.Clone()
	return nil
}

func (t *txn) DeleteInstance(ctx context.Context, id string) error {
	if _, ok := t.state.instances[id]; !ok {
		return &domain.NotFoundError{Kind: domain.KindInstance, ID: id}
	}
	delete(t.state.instances, id)
	return nil
}

// InstanceUsingProfile walks profile -> nodes -> specs -> instances
func (t *txn) InstanceUsingProfile(ctx context.Context, profileID string) (string, error) {
	var instances []*domain.ServiceChainInstance
	for _, i := range t.state.instances {
		for _, specID := range i.SpecIDs {
			if t.specUsesProfile(specID, profileID) {
				instances = append(instances, i)
				break
			}
		}
	}
	if len(instances) == 0 {
		return "", nil
	}
	sortInstances(instances)
	return instances[0].ID, nil
}

func (t *txn) specUsesProfile(specID, profileID string) bool {
	s, ok := t.state.specs[specID]
	if !ok {
		return false
	}
	for _, nodeID := range s.NodeIDs {
		if n, ok := t.state.nodes[nodeID]; ok && n.ProfileID == profileID {
			return true
		}
	}
	return false
}

func contains(values []string, id string) bool {
	for _, v := range values {
		if v == id {
			return true
		}
	}
	return false
}

func before(ts1 int64, id1 string, ts2 int64, id2 string) bool {
	if ts1 != ts2 {
		return ts1 < ts2
	}
	return id1 < id2
}

func sortNodes(nodes []*domain.ServiceChainNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return before(nodes[i].CreatedAt.UnixNano(), nodes[i].ID, nodes[j].CreatedAt.UnixNano(), nodes[j].ID)
	})
}

func sortInstances(instances []*domain.ServiceChainInstance) {
	sort.Slice(instances, func(i, j int) bool {
		return before(instances[i].CreatedAt.UnixNano(), instances[i].ID, instances[j].CreatedAt.UnixNano(), instances[j].ID)
	})
}
