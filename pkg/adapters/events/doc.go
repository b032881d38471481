// Package events provides event bus implementations for lifecycle
// notifications.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: In-process fan-out, for single node deployments and tests
package events
