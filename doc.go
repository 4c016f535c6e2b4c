// Package tokengate provides a token lifecycle engine built on stateless
// JWT access tokens and rotating opaque refresh tokens with server-side
// state.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokengate is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (LoginResult, AuthResult, MetricsSnapshot).
// Token persistence lives under store/ behind the [store.Store] contract;
// rate limiting and audit dispatch live under internal/ and are never
// exported.
//
// # What this package must NOT do
//
//   - Expose Redis or SQL clients, store internals, or token encodings in
//     its public API.
//   - Store access tokens anywhere. Access-token validity is signature
//     plus expiry; only refresh tokens have server-side state.
//   - Import any sub-package that re-imports tokengate (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path. It must not allocate beyond the returned
// AuthResult and completes without any store round-trip. Refresh performs
// exactly one store compare-and-swap plus one insert; Login one insert.
package tokengate
