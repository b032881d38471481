// Package ports declares the interfaces the node composition orchestrator
// consumes: the entity store and its transactions, node drivers and the
// registry that schedules them, the plumber, the sharing guard, the event bus
// and the metrics collector.
package ports
