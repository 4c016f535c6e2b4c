// Package jwt manages access-token issuance and verification using configured signing keys
// and strict validation semantics suitable for low-latency authentication paths.
//
// Access tokens are stateless: once issued they remain valid until their
// expiry and cannot be recalled. Revocation is a refresh-token concern and
// lives outside this package.
package jwt
