// Package sharing enforces tenant ownership and sharing rules for service
// chain entities inside the orchestrator's transaction.
package sharing
