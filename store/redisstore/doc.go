// Package redisstore implements the refresh-token store on Redis.
//
// Each record is a hash at rt:t:<tokenID> with a per-user index set at
// rt:u:<userID>. Rotation runs as a Lua compare-and-swap so concurrent
// refreshes of the same token produce exactly one winner.
//
// # What this package must NOT do
//
//   - Decide policy (reuse handling and family revocation live in tokengate).
//   - Expire records with key TTLs (deletion happens only via PurgeExpired).
//   - Log token IDs.
package redisstore
