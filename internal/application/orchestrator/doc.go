// Package orchestrator implements service chain lifecycle orchestration.
//
// The Manager runs every lifecycle call in two phases. Inside one storage
// transaction it validates the request, enforces sharing rules, persists
// the change and schedules one driver per affected node. After commit it
// plugs or unplugs the batch and calls the scheduled drivers:
//
//   - instance create: plug, then create each node in spec order; on
//     failure the instance is deleted again and the error is returned
//   - instance update: when the spec changes, destroy the old nodes and
//     deploy the new ones; on failure the instance is marked ERROR
//   - instance delete: delete each node, logging failures, then unplug
//   - node update: one driver update per instance running the node,
//     fanned out over the worker pool and isolated from each other
//
// A node without a qualifying driver aborts the transaction, so nothing is
// persisted and no driver is called. Drivers consulted while scheduling
// read the chain through that transaction. Once it commits, execution runs
// to completion even if the caller's context is cancelled.
package orchestrator
