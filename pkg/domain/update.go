package domain

// ProfileUpdate holds the mutable profile attributes. Nil fields are left untouched.
type ProfileUpdate struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	ServiceType   *string `json:"service_type,omitempty"`
	Vendor        *string `json:"vendor,omitempty"`
	ServiceFlavor *string `json:"service_flavor,omitempty"`
	InsertionMode *string `json:"insertion_mode,omitempty"`
	Shared        *bool   `json:"shared,omitempty"`
}

// Apply returns a copy of p with the update applied
func (u ProfileUpdate) Apply(p *ServiceProfile) *ServiceProfile {
	out := p.Clone()
	setString(&out.Name, u.Name)
	setString(&out.Description, u.Description)
	setString(&out.ServiceType, u.ServiceType)
	setString(&out.Vendor, u.Vendor)
	setString(&out.ServiceFlavor, u.ServiceFlavor)
	setString(&out.InsertionMode, u.InsertionMode)
	setBool(&out.Shared, u.Shared)
	return out
}

// NodeUpdate holds the mutable node attributes
type NodeUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ProfileID   *string `json:"service_profile_id,omitempty"`
	Config      *string `json:"config,omitempty"`
	Shared      *bool   `json:"shared,omitempty"`
}

// Apply returns a copy of n with the update applied
func (u NodeUpdate) Apply(n *ServiceChainNode) *ServiceChainNode {
	out := n.Clone()
	setString(&out.Name, u.Name)
	setString(&out.Description, u.Description)
	setString(&out.ProfileID, u.ProfileID)
	setString(&out.Config, u.Config)
	setBool(&out.Shared, u.Shared)
	return out
}

// SpecUpdate holds the mutable spec attributes
type SpecUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	NodeIDs     *[]string `json:"nodes,omitempty"`
	ConfigParam *string   `json:"config_param_names,omitempty"`
	Shared      *bool     `json:"shared,omitempty"`
}

// Apply returns a copy of s with the update applied
func (u SpecUpdate) Apply(s *ServiceChainSpec) *ServiceChainSpec {
	out := s.Clone()
	setString(&out.Name, u.Name)
	setString(&out.Description, u.Description)
	setString(&out.ConfigParam, u.ConfigParam)
	setBool(&out.Shared, u.Shared)
	if u.NodeIDs != nil {
		out.NodeIDs = cloneStrings(*u.NodeIDs)
	}
	return out
}

// InstanceUpdate holds the mutable instance attributes
type InstanceUpdate struct {
	Name              *string   `json:"name,omitempty"`
	Description       *string   `json:"description,omitempty"`
	SpecIDs           *[]string `json:"servicechain_specs,omitempty"`
	ClassifierID      *string   `json:"classifier_id,omitempty"`
	ConfigParamValues *string   `json:"config_param_values,omitempty"`
}

// Apply returns a copy of i with the update applied
func (u InstanceUpdate) Apply(i *ServiceChainInstance) *ServiceChainInstance {
	out := i.Clone()
	setString(&out.Name, u.Name)
	setString(&out.Description, u.Description)
	setString(&out.ClassifierID, u.ClassifierID)
	setString(&out.ConfigParamValues, u.ConfigParamValues)
	if u.SpecIDs != nil {
		out.SpecIDs = cloneStrings(*u.SpecIDs)
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
