package store

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a refresh-token record. Expiry is not
// a status: it is a predicate over ExpiresAt evaluated on every use.
type Status string

const (
	// StatusActive marks a token that may be exchanged exactly once.
	StatusActive Status = "active"
	// StatusRotated marks a token consumed by a successful refresh.
	StatusRotated Status = "rotated"
	// StatusRevoked marks a token invalidated by logout or revocation.
	StatusRevoked Status = "revoked"
)

// Record is a single refresh token. TokenID doubles as the client-held
// secret, so it must come from a CSPRNG and is never logged in full.
type Record struct {
	TokenID   string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Status    Status
}

// Expired reports whether the record is past its expiry at the given
// instant. Rotated and Revoked are terminal states; Expired is not.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

var (
	// ErrTokenNotFound is returned when no record exists for the token ID.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenExpired is returned when the record exists but is past expiry.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrTokenNotActive is returned when a rotation targets a record in a
	// terminal state. This is the reuse-detection signal.
	ErrTokenNotActive = errors.New("refresh token not active")
	// ErrUnavailable wraps backend failures. It is the only retryable class.
	ErrUnavailable = errors.New("token store unavailable")
)

// Store persists refresh-token records. Implementations must make
// MarkRotated a true compare-and-swap: under concurrent rotation of the
// same token exactly one caller wins, without a read-then-write window.
type Store interface {
	// Create inserts a new Active record for the user with a fresh
	// crypto-random token ID expiring at now+ttl.
	Create(ctx context.Context, userID string, ttl time.Duration) (*Record, error)

	// Lookup returns the record by token ID, whatever its status.
	Lookup(ctx context.Context, tokenID string) (*Record, error)

	// MarkRotated atomically transitions Active to Rotated and returns
	// the updated record. Expired records fail with ErrTokenExpired even
	// when still Active; terminal records fail with ErrTokenNotActive.
	MarkRotated(ctx context.Context, tokenID string) (*Record, error)

	// Revoke transitions the record to Revoked regardless of current
	// status or expiry. Revoking an absent or already-revoked token is
	// not an error.
	Revoke(ctx context.Context, tokenID string) error

	// RevokeAllForUser revokes every non-terminal record of the user and
	// returns how many records transitioned.
	RevokeAllForUser(ctx context.Context, userID string) (int, error)

	// PurgeExpired deletes records with ExpiresAt before now, regardless
	// of status, and returns the number removed. Non-expired records are
	// never touched.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
