package drivers

import (
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"go.uber.org/zap"
)

var _ ports.DriverRegistry = (*Registry)(nil)

// AnyServiceType matches every service type
const AnyServiceType = "*"

// Capability is the (service type, vendor) pair a driver handles.
// An empty Vendor matches every vendor of the service type.
type Capability struct {
	ServiceType string `yaml:"service_type" json:"service_type"`
	Vendor      string `yaml:"vendor,omitempty" json:"vendor,omitempty"`
}

// DriverInfo describes one registered driver
type DriverInfo struct {
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
}

type registration struct {
	driver       ports.NodeDriver
	capabilities []Capability
}

// initializer is implemented by drivers that need a startup hook
type initializer interface {
	Initialize(ctx context.Context) error
}

// Registry indexes node drivers by capability. Drivers are registered before
// Initialize; afterwards the registry is read-only and scheduling is a pure
// function of its state and the node profile.
type Registry struct {
	logger *zap.Logger

	mu          sync.RWMutex
	entries     []registration
	index       map[Capability][]int
	names       map[string]bool
	initialized bool
}

// NewRegistry creates an empty driver registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		index:  make(map[Capability][]int),
		names:  make(map[string]bool),
	}
}

// Register adds a driver for the given capabilities. Registration order is
// scheduling precedence among drivers matching the same capability.
func (r *Registry) Register(driver ports.NodeDriver, capabilities ...Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return fmt.Errorf("registry already initialized, cannot register %s", driver.Name())
	}
	if r.names[driver.Name()] {
		return fmt.Errorf("driver %s already registered", driver.Name())
	}
	if len(capabilities) == 0 {
		return fmt.Errorf("driver %s has no capabilities", driver.Name())
	}

	for _, c := range capabilities {
		if c.ServiceType == "" {
			return fmt.Errorf("driver %s: capability without service type", driver.Name())
		}
	}

	pos := len(r.entries)
	caps := make([]Capability, len(capabilities))
	copy(caps, capabilities)
	for _, c := range caps {
		r.index[c] = append(r.index[c], pos)
	}
	r.entries = append(r.entries, registration{driver: driver, capabilities: caps})
	r.names[driver.Name()] = true
	return nil
}

// Initialize runs driver startup hooks and freezes the registry
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}
	for _, e := range r.entries {
		if hook, ok := e.driver.(initializer); ok {
			if err := hook.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize driver %s: %w", e.driver.Name(), err)
			}
		}
	}
	r.initialized = true

	r.logger.Info("driver registry initialized", zap.Int("drivers", len(r.entries)))
	return nil
}

// ScheduleDeploy returns the driver that creates the node, or nil
func (r *Registry) ScheduleDeploy(nc *ports.NodeContext) ports.NodeDriver {
	return r.schedule(domain.ActionDeploy, nc)
}

// ScheduleUpdate returns the driver that updates the node, or nil
func (r *Registry) ScheduleUpdate(nc *ports.NodeContext) ports.NodeDriver {
	return r.schedule(domain.ActionUpdate, nc)
}

// ScheduleDestroy returns the driver that deletes the node, or nil
func (r *Registry) ScheduleDestroy(nc *ports.NodeContext) ports.NodeDriver {
	return r.schedule(domain.ActionDestroy, nc)
}

// Drivers lists the registered drivers in precedence order
func (r *Registry) Drivers() []DriverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DriverInfo, 0, len(r.entries))
	for _, e := range r.entries {
		caps := make([]Capability, len(e.capabilities))
		copy(caps, e.capabilities)
		out = append(out, DriverInfo{Name: e.driver.Name(), Capabilities: caps})
	}
	return out
}

// schedule matches (type, vendor), then (type, any vendor), then the
// wildcard type. Within a key, the first registered driver whose validator
// accepts the action wins.
func (r *Registry) schedule(action domain.Action, nc *ports.NodeContext) ports.NodeDriver {
	if nc == nil || nc.CurrentProfile == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	profile := nc.CurrentProfile
	keys := []Capability{
		{ServiceType: profile.ServiceType, Vendor: profile.Vendor},
		{ServiceType: profile.ServiceType},
		{ServiceType: AnyServiceType},
	}
	seen := make(map[Capability]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		for _, pos := range r.index[key] {
			driver := r.entries[pos].driver
			if v, ok := driver.(ports.ActionValidator); ok {
				if err := v.Validate(action, nc); err != nil {
					continue
				}
			}
			return driver
		}
	}
	return nil
}
