// Package authcore provides an account authentication engine with a
// two-step OTP login, signed expiring typed tokens, durable lockout
// policy, and OAuth identity federation against a caller-supplied user
// store.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder],
// [Config], the [UserStore] and [Mailer] contracts, and value types
// (UserSummary, LoginResult, AuditEvent, etc.). Internal coordination
// such as flood limiting, audit dispatch, and randomness lives under
// internal/ and is never exported. Token signing and password hashing
// live in the token and password sub-packages.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store rows, or OTP/credential material in
//     its public API or results.
//   - Speak HTTP, OAuth transport, or SMTP. Code exchange and message
//     rendering belong to the caller; the engine consumes a verified
//     [ExternalIdentity] and a [Mailer].
//   - Import any sub-package that re-imports authcore (no import
//     cycles).
//
// # Persistence contract
//
// The engine owns every mutation of the lockout, OTP, and status fields
// on [User] and persists them through [UserStore.UpdateUser]. Store
// implementations report absence and uniqueness violations with the
// package sentinels so the engine's precedence rules hold across
// backends.
package authcore
