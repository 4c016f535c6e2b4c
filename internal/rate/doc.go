// Package rate provides Redis-backed rate limit counters for the login
// and refresh paths.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  login per-email
//   - ali: login per-IP
//   - ar:  refresh per-token
//
// # What this package must NOT do
//
//   - Decide which operations are throttled (that is engine configuration).
//   - Be imported outside the tokengate module.
package rate
