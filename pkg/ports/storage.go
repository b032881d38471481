package ports

import (
	"context"

	"github.com/aescanero/nodecomp/pkg/domain"
)

// EntityStore persists service chain entities
type EntityStore interface {
	// RunInTransaction runs fn inside one storage transaction. The
	// transaction commits when fn returns nil and aborts otherwise.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying connections
	Close() error
}

// Tx is a unit of work against the entity store. Reads observe the
// transaction's own writes. Get* methods return domain.ErrNotFound (wrapped)
// for missing entities; Get*s membership queries skip missing ids and keep
// the order of the requested ids.
type Tx interface {
	CreateProfile(ctx context.Context, p *domain.ServiceProfile) error
	GetProfile(ctx context.Context, id string) (*domain.ServiceProfile, error)
	GetProfiles(ctx context.Context, ids []string) ([]*domain.ServiceProfile, error)
	ListProfiles(ctx context.Context, tenantID string) ([]*domain.ServiceProfile, error)
	UpdateProfile(ctx context.Context, p *domain.ServiceProfile) error
	DeleteProfile(ctx context.Context, id string) error

	CreateNode(ctx context.Context, n *domain.ServiceChainNode) error
	GetNode(ctx context.Context, id string) (*domain.ServiceChainNode, error)
	GetNodes(ctx context.Context, ids []string) ([]*domain.ServiceChainNode, error)
	ListNodes(ctx context.Context, tenantID string) ([]*domain.ServiceChainNode, error)
	UpdateNode(ctx context.Context, n *domain.ServiceChainNode) error
	DeleteNode(ctx context.Context, id string) error

	CreateSpec(ctx context.Context, s *domain.ServiceChainSpec) error
	GetSpec(ctx context.Context, id string) (*domain.ServiceChainSpec, error)
	GetSpecs(ctx context.Context, ids []string) ([]*domain.ServiceChainSpec, error)
	ListSpecs(ctx context.Context, tenantID string) ([]*domain.ServiceChainSpec, error)
	UpdateSpec(ctx context.Context, s *domain.ServiceChainSpec) error
	DeleteSpec(ctx context.Context, id string) error

	CreateInstance(ctx context.Context, i *domain.ServiceChainInstance) error
	GetInstance(ctx context.Context, id string) (*domain.ServiceChainInstance, error)
	GetInstances(ctx context.Context, ids []string) ([]*domain.ServiceChainInstance, error)
	ListInstances(ctx context.Context, tenantID string) ([]*domain.ServiceChainInstance, error)
	UpdateInstance(ctx context.Context, i *domain.ServiceChainInstance) error
	DeleteInstance(ctx context.Context, id string) error

	// InstanceUsingProfile returns the id of an instance that references the
	// profile through node -> spec -> instance, or "" if there is none.
	InstanceUsingProfile(ctx context.Context, profileID string) (string, error)

	// Savepoint runs fn as a nested unit of work. If fn fails only its own
	// mutations are discarded; the enclosing transaction stays usable.
	Savepoint(ctx context.Context, fn func(tx Tx) error) error
}
