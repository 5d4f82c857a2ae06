// Package internal contains helper utilities that are intentionally private to authcore,
// including secure random generation for OTPs, usernames, and placeholder id numbers.
//
// # Sub-packages
//
//   - audit — async event model and Sink implementations
//   - rate — Redis-backed flood-control primitives for request endpoints
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
