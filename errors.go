package tokengate

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when the email or password
	// does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned by Authenticate for any access token
	// the codec rejects. The cause is deliberately not exposed.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidRefreshToken is returned by Refresh for any unusable token:
	// unknown, expired, rotated, or revoked. The classes are merged so the
	// refresh endpoint cannot be used as a token-state oracle.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrForbidden signals that an authenticated caller lacks the role an
	// operation requires. The engine itself makes no authorization
	// decisions; middleware.RequireRole and integrator transports use
	// this sentinel for their rejections.
	ErrForbidden = errors.New("forbidden")
	// ErrLoginRateLimited is returned when the login throttle rejects the
	// attempt before credentials are checked.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when the refresh throttle rejects
	// the attempt before the store is consulted.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrUnavailable wraps infrastructure failures (store, Redis, user
	// provider). It is the only retryable class.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Builder.Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)
