// Package domain defines the service chain entities handled by the node
// composition orchestrator, the request caller carried in contexts, the
// lifecycle events it publishes and its error taxonomy.
package domain
