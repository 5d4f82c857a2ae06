// Package rate provides internal primitives used to build Redis-backed flood-control
// keys, errors, and limiter behavior for mail-sending authentication endpoints.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - fo:  — OTP request per-identifier
//   - foi: — OTP request per-IP
//   - fr:  — reset request per-identifier
//   - fri: — reset request per-IP
//
// # What this package must NOT do
//
//   - Implement the durable lockout policy (that lives on the user record).
//   - Be imported outside the authcore module.
package rate
