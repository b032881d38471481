// Package storage provides entity store implementations.
//
// Implementations:
//   - postgres: relational schema with association tables, savepoints for nested units of work
//   - redis: JSON documents with optimistic WATCH/MULTI transactions
//   - memory: In-memory for testing
package storage
