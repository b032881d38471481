package domain

// Action is a scheduling action kind
type Action string

const (
	ActionDeploy  Action = "deploy"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// PlumbingTarget describes one attachment point a node needs
type PlumbingTarget struct {
	Name       string            `json:"name" yaml:"name"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// PlumbingInfo is the connectivity a node requires, grouped by role
type PlumbingInfo struct {
	Management []PlumbingTarget `json:"management,omitempty" yaml:"management,omitempty"`
	Provider   []PlumbingTarget `json:"provider,omitempty" yaml:"provider,omitempty"`
	Consumer   []PlumbingTarget `json:"consumer,omitempty" yaml:"consumer,omitempty"`
}

// Empty reports whether no connectivity is required
func (p PlumbingInfo) Empty() bool {
	return len(p.Management) == 0 && len(p.Provider) == 0 && len(p.Consumer) == 0
}
