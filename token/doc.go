// Package token mints and verifies signed, expiring, typed tokens (activation,
// password reset, access, refresh) with per-kind lifetimes and strict validation
// semantics. Verification refuses a structurally valid token of the wrong kind.
package token
