// Package store defines the refresh-token record model and the Store
// contract shared by the Redis and Postgres backends.
//
// # Lifecycle
//
// Records are created Active, move to Rotated on refresh or Revoked on
// logout, and are physically deleted only by PurgeExpired once past
// expiry. Terminal records are retained until then so that reuse of a
// consumed token can be distinguished from a token that never existed.
//
// # What this package must NOT do
//
//   - Perform I/O (backends live in store/redisstore and store/pgstore).
//   - Import tokengate or jwt (no upward imports).
package store
