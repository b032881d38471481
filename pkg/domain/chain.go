package domain

import "time"

// InstanceStatus is the lifecycle status of a service chain instance
type InstanceStatus string

const (
	InstanceStatusBuild  InstanceStatus = "BUILD"
	InstanceStatusActive InstanceStatus = "ACTIVE"
	InstanceStatusError  InstanceStatus = "ERROR"
)

// ServiceProfile describes the capability contract a node requires
type ServiceProfile struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ServiceType   string    `json:"service_type"`
	Vendor        string    `json:"vendor,omitempty"`
	ServiceFlavor string    `json:"service_flavor,omitempty"`
	InsertionMode string    `json:"insertion_mode,omitempty"`
	Shared        bool      `json:"shared"`
	CreatedAt     time.Time `json:"created_at"`

	// NodeIDs lists the nodes using the profile. Computed on read.
	NodeIDs []string `json:"nodes,omitempty"`
}

// ServiceChainNode is one stage of a spec
type ServiceChainNode struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ProfileID   string    `json:"service_profile_id"`
	Config      string    `json:"config,omitempty"`
	Shared      bool      `json:"shared"`
	CreatedAt   time.Time `json:"created_at"`

	// SpecIDs lists the specs including the node. Computed on read.
	SpecIDs []string `json:"servicechain_specs,omitempty"`
}

// ServiceChainSpec is an ordered template of nodes
type ServiceChainSpec struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	NodeIDs     []string  `json:"nodes"`
	ConfigParam string    `json:"config_param_names,omitempty"`
	Shared      bool      `json:"shared"`
	CreatedAt   time.Time `json:"created_at"`

	// InstanceIDs lists the instances referencing the spec. Computed on read.
	InstanceIDs []string `json:"instances,omitempty"`
}

// ServiceChainInstance is a deployed composition
type ServiceChainInstance struct {
	ID                string         `json:"id"`
	TenantID          string         `json:"tenant_id"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	SpecIDs           []string       `json:"servicechain_specs"`
	ProviderGroupID   string         `json:"provider_ptg_id,omitempty"`
	ConsumerGroupID   string         `json:"consumer_ptg_id,omitempty"`
	ClassifierID      string         `json:"classifier_id,omitempty"`
	ConfigParamValues string         `json:"config_param_values,omitempty"`
	Status            InstanceStatus `json:"status"`
	StatusDetails     string         `json:"status_details,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// SpecID returns the single spec referenced by the instance, or "" if none
func (i *ServiceChainInstance) SpecID() string {
	if len(i.SpecIDs) == 0 {
		return ""
	}
	return i.SpecIDs[0]
}

// Clone returns a deep copy of the profile
func (p *ServiceProfile) Clone() *ServiceProfile {
	c := *p
	c.NodeIDs = cloneStrings(p.NodeIDs)
	return &c
}

// Clone returns a deep copy of the node
func (n *ServiceChainNode) Clone() *ServiceChainNode {
	c := *n
	c.SpecIDs = cloneStrings(n.SpecIDs)
	return &c
}

// Clone returns a deep copy of the spec
func (s *ServiceChainSpec) Clone() *ServiceChainSpec {
	c := *s
	c.NodeIDs = cloneStrings(s.NodeIDs)
	c.InstanceIDs = cloneStrings(s.InstanceIDs)
	return &c
}

// Clone returns a deep copy of the instance
func (i *ServiceChainInstance) Clone() *ServiceChainInstance {
	c := *i
	c.SpecIDs = cloneStrings(i.SpecIDs)
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// EqualIDs reports whether two ordered id lists are identical
func EqualIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
