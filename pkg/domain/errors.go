package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a transaction lost a concurrent update race
	ErrConflict = errors.New("concurrent modification")
)

// NotFoundError wraps ErrNotFound with the entity kind and id
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TooManySpecsError is returned when an instance references more than one spec
type TooManySpecsError struct {
	InstanceID string
	Count      int
}

func (e *TooManySpecsError) Error() string {
	return fmt.Sprintf("only one spec per instance allowed, instance %s references %d", e.InstanceID, e.Count)
}

// NoDriverAvailableError is returned when no registered driver qualifies for a node and action
type NoDriverAvailableError struct {
	Action Action
	NodeID string
}

func (e *NoDriverAvailableError) Error() string {
	return fmt.Sprintf("no driver available for action %s on node %s", e.Action, e.NodeID)
}

// NodeDriverError is a driver-specific failure
type NodeDriverError struct {
	Driver string
	NodeID string
	Err    error
}

func (e *NodeDriverError) Error() string {
	return fmt.Sprintf("driver %s failed on node %s: %v", e.Driver, e.NodeID, e.Err)
}

func (e *NodeDriverError) Unwrap() error { return e.Err }

// ProfileInUseError is returned when a profile referenced by a live instance is updated
type ProfileInUseError struct {
	ProfileID  string
	InstanceID string
}

func (e *ProfileInUseError) Error() string {
	return fmt.Sprintf("service profile %s is in use by instance %s", e.ProfileID, e.InstanceID)
}

// InUseError is returned when deleting an entity that is still referenced
type InUseError struct {
	Kind   string
	ID     string
	UsedBy string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %s is in use by %s", e.Kind, e.ID, e.UsedBy)
}

// SharingError is a visibility or ownership violation
type SharingError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *SharingError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, e.Reason)
}

// AdminRequiredError is returned when a non-admin acts on behalf of another tenant
type AdminRequiredError struct {
	Reason string
}

func (e *AdminRequiredError) Error() string {
	return "admin required: " + e.Reason
}

// ValidationError is a malformed request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Entity kinds used in errors, logs and sharing checks
const (
	KindInstance = "servicechain_instance"
	KindSpec     = "servicechain_spec"
	KindNode     = "servicechain_node"
	KindProfile  = "service_profile"
)
