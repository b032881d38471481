// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Service profile, node, spec and instance lifecycle under /api/v1
//   - Registered driver listing
//   - Health checks including the worker pool
//   - Prometheus metrics
//
// Caller identity is taken from the X-Tenant-ID and X-Admin headers.
package http
