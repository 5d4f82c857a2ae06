// Package middleware exposes HTTP middleware adapters built on top of
// authcore.Engine authentication.
//
// # Guards
//
//   - [Guard] — resolves the bearer access token to an account.
//   - [RequireRole] — layered after [Guard], restricts by account role.
//
// Each guard reads the Authorization header, calls Engine.Authenticate,
// and injects the resolved account summary into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated
// to Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Touch the user store (Engine handles I/O).
//   - Make authorization decisions beyond the role allow-list.
package middleware
