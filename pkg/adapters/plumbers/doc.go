// Package plumbers holds the built-in connectivity plumbers.
//
// Implementations:
//   - noop: records nothing and plugs nothing
package plumbers
