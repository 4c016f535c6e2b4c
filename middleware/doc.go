// Package middleware exposes HTTP adapters for access-token enforcement
// built on top of tokengate.Engine.
//
// # Guards
//
//   - [Guard] verifies bearer tokens via Engine.Authenticate.
//   - [RequireRole] checks the role on the verified identity.
//
// Guard reads the Authorization header, calls Engine.Authenticate, and
// injects the verified identity into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Touch the refresh-token store (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject plus role match.
package middleware
