package ports

import (
	"context"

	"github.com/aescanero/nodecomp/pkg/domain"
)

// ChainReader gives drivers read access to persisted chain entities
type ChainReader interface {
	GetInstance(ctx context.Context, id string) (*domain.ServiceChainInstance, error)
	GetSpec(ctx context.Context, id string) (*domain.ServiceChainSpec, error)
	GetNode(ctx context.Context, id string) (*domain.ServiceChainNode, error)
	GetProfile(ctx context.Context, id string) (*domain.ServiceProfile, error)
}

// NodeContext binds everything a driver needs for one node operation. It is
// built during scheduling and discarded after execution; never persisted.
type NodeContext struct {
	// Chain reads entities. During scheduling it reads through the open
	// transaction; during execution through the orchestrator.
	Chain  ChainReader
	Caller domain.Caller

	Instance       *domain.ServiceChainInstance
	Spec           *domain.ServiceChainSpec
	CurrentNode    *domain.ServiceChainNode
	CurrentProfile *domain.ServiceProfile

	// Set for node updates only
	OriginalNode    *domain.ServiceChainNode
	OriginalProfile *domain.ServiceProfile
}

// NodeDriver provisions one kind of service node
type NodeDriver interface {
	Name() string
	Create(ctx context.Context, nc *NodeContext) error
	Update(ctx context.Context, nc *NodeContext) error
	Delete(ctx context.Context, nc *NodeContext) error
	GetPlumbingInfo(nc *NodeContext) domain.PlumbingInfo
}

// ActionValidator is implemented by drivers that may decline an action for
// a node they otherwise handle. It must be free of side effects.
type ActionValidator interface {
	Validate(action domain.Action, nc *NodeContext) error
}

// DriverRegistry selects the single driver responsible for a node and action.
// Schedule* functions return nil when no driver qualifies.
type DriverRegistry interface {
	Initialize(ctx context.Context) error
	ScheduleDeploy(nc *NodeContext) NodeDriver
	ScheduleUpdate(nc *NodeContext) NodeDriver
	ScheduleDestroy(nc *NodeContext) NodeDriver
}

// ScheduledOp is one scheduled node operation
type ScheduledOp struct {
	// Key is the node id for deploy/destroy batches and the instance id
	// for node update fan-outs
	Key      string
	Driver   NodeDriver
	Context  *NodeContext
	Plumbing domain.PlumbingInfo
}

// Plumber establishes and tears down node connectivity for a batch
type Plumber interface {
	Initialize(ctx context.Context) error
	PlugServices(ctx context.Context, batch []*ScheduledOp) error
	UnplugServices(ctx context.Context, batch []*ScheduledOp) error
}

// SharingGuard enforces visibility and ownership rules. Entities are one of
// the four domain chain entity pointer types.
type SharingGuard interface {
	ValidateSharedCreate(ctx context.Context, tx Tx, entity interface{}) error
	ValidateSharedUpdate(ctx context.Context, tx Tx, original, updated interface{}) error
}
