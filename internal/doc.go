// Package internal contains helpers that are intentionally private to
// tokengate, including secure token ID generation.
//
// # Sub-packages
//
//   - rate: Redis-backed rate limit counters for login and refresh
//
// # What this package must NOT do
//
//   - Export types that appear in the public tokengate API.
//   - Be imported by any package outside the tokengate module.
package internal
