package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
)

const (
	maxNameLength        = 255
	maxDescriptionLength = 1024
)

var insertionModes = map[string]bool{
	"":     true,
	"l2":   true,
	"l3":   true,
	"bitw": true,
	"tap":  true,
}

// Validator checks chain entity requests
type Validator struct{}

// NewValidator creates a new request validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProfile validates a profile's fields
func (v *Validator) ValidateProfile(p *domain.ServiceProfile) error {
	if p == nil {
		return &domain.ValidationError{Field: "service_profile", Reason: "is required"}
	}
	if err := v.validateCommon(p.Name, p.Description); err != nil {
		return err
	}
	if p.ServiceType == "" {
		return &domain.ValidationError{Field: "service_type", Reason: "is required"}
	}
	if !insertionModes[p.InsertionMode] {
		return &domain.ValidationError{Field: "insertion_mode", Reason: fmt.Sprintf("unsupported mode %q", p.InsertionMode)}
	}
	return nil
}

// ValidateNode validates a node's fields
func (v *Validator) ValidateNode(n *domain.ServiceChainNode) error {
	if n == nil {
		return &domain.ValidationError{Field: "servicechain_node", Reason: "is required"}
	}
	if err := v.validateCommon(n.Name, n.Description); err != nil {
		return err
	}
	if n.ProfileID == "" {
		return &domain.ValidationError{Field: "service_profile_id", Reason: "is required"}
	}
	return nil
}

// ValidateSpec validates a spec's fields
func (v *Validator) ValidateSpec(s *domain.ServiceChainSpec) error {
	if s == nil {
		return &domain.ValidationError{Field: "servicechain_spec", Reason: "is required"}
	}
	if err := v.validateCommon(s.Name, s.Description); err != nil {
		return err
	}
	for i, id := range s.NodeIDs {
		if id == "" {
			return &domain.ValidationError{Field: "nodes", Reason: fmt.Sprintf("entry %d is empty", i)}
		}
	}
	return nil
}

// ValidateInstance validates an instance's fields. The single-spec rule is
// enforced by the manager inside the transaction.
func (v *Validator) ValidateInstance(i *domain.ServiceChainInstance) error {
	if i == nil {
		return &domain.ValidationError{Field: "servicechain_instance", Reason: "is required"}
	}
	if err := v.validateCommon(i.Name, i.Description); err != nil {
		return err
	}
	for n, id := range i.SpecIDs {
		if id == "" {
			return &domain.ValidationError{Field: "servicechain_specs", Reason: fmt.Sprintf("entry %d is empty", n)}
		}
	}
	if i.ConfigParamValues != "" && !json.Valid([]byte(i.ConfigParamValues)) {
		return &domain.ValidationError{Field: "config_param_values", Reason: "must be valid JSON"}
	}
	return nil
}

func (v *Validator) validateCommon(name, description string) error {
	if len(name) > maxNameLength {
		return &domain.ValidationError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", maxNameLength)}
	}
	if len(description) > maxDescriptionLength {
		return &domain.ValidationError{Field: "description", Reason: fmt.Sprintf("longer than %d characters", maxDescriptionLength)}
	}
	return nil
}

// CheckNodeReferences verifies the node's profile exists
func (v *Validator) CheckNodeReferences(ctx context.Context, tx ports.Tx, n *domain.ServiceChainNode) error {
	_, err := tx.GetProfile(ctx, n.ProfileID)
	return err
}

// CheckSpecReferences verifies every node of the spec exists
func (v *Validator) CheckSpecReferences(ctx context.Context, tx ports.Tx, s *domain.ServiceChainSpec) error {
	for _, id := range s.NodeIDs {
		if _, err := tx.GetNode(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CheckInstanceReferences verifies every spec of the instance exists
func (v *Validator) CheckInstanceReferences(ctx context.Context, tx ports.Tx, i *domain.ServiceChainInstance) error {
	for _, id := range i.SpecIDs {
		if _, err := tx.GetSpec(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
