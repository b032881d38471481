// Package drivers holds the built-in node driver variants.
//
// Implementations:
//   - noop: accepts every operation without provisioning anything
package drivers
