package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mfreitas/tokengate/internal"
	"github.com/mfreitas/tokengate/store"
	"github.com/mfreitas/tokengate/store/pgstore/migrations"
)

const (
	qCreate = `
		INSERT INTO refresh_tokens (token_id, user_id, issued_at, expires_at, status)
		VALUES ($1, $2, $3, $4, 'active')`

	qLookup = `
		SELECT user_id, issued_at, expires_at, status
		FROM refresh_tokens
		WHERE token_id = $1`

	qRotate = `
		UPDATE refresh_tokens
		SET status = 'rotated'
		WHERE token_id = $1 AND status = 'active' AND expires_at > $2
		RETURNING user_id, issued_at, expires_at`

	qRevoke = `
		UPDATE refresh_tokens
		SET status = 'revoked'
		WHERE token_id = $1`

	qRevokeAllForUser = `
		UPDATE refresh_tokens
		SET status = 'revoked'
		WHERE user_id = $1 AND status = 'active'`

	qPurgeExpired = `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1`
)

// Store is a Postgres-backed refresh-token store. Rotation relies on a
// conditional UPDATE so the Active check and the status flip happen in
// one statement; no read-then-write window exists.
type Store struct {
	db *sql.DB
}

// New wraps an existing *sql.DB. The pool must use the pgx stdlib driver
// or any driver with compatible placeholder syntax.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres via the pgx stdlib driver and verifies the
// connection before returning.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return &Store{db: db}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a fresh Active record for the user.
func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration) (*store.Record, error) {
	id, err := internal.NewTokenID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &store.Record{
		TokenID:   id.String(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Status:    store.StatusActive,
	}

	if _, err := s.db.ExecContext(ctx, qCreate, rec.TokenID, rec.UserID, rec.IssuedAt, rec.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return rec, nil
}

// Lookup returns the record by token ID, whatever its status.
func (s *Store) Lookup(ctx context.Context, tokenID string) (*store.Record, error) {
	rec := &store.Record{TokenID: tokenID}
	err := s.db.QueryRowContext(ctx, qLookup, tokenID).
		Scan(&rec.UserID, &rec.IssuedAt, &rec.ExpiresAt, &rec.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return rec, nil
}

// MarkRotated atomically transitions Active to Rotated. On a zero-row
// update a classifying read distinguishes the three losing outcomes.
func (s *Store) MarkRotated(ctx context.Context, tokenID string) (*store.Record, error) {
	now := time.Now()
	rec := &store.Record{TokenID: tokenID, Status: store.StatusRotated}

	err := s.db.QueryRowContext(ctx, qRotate, tokenID, now).
		Scan(&rec.UserID, &rec.IssuedAt, &rec.ExpiresAt)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	// Lost the CAS. Classify without racing: the record can only move
	// further away from Active, never back, so this read is safe.
	existing, lookErr := s.Lookup(ctx, tokenID)
	if lookErr != nil {
		return nil, lookErr
	}
	if existing.Status != store.StatusActive {
		return nil, store.ErrTokenNotActive
	}
	return nil, store.ErrTokenExpired
}

// Revoke transitions the record to Revoked. Missing records are not an
// error.
func (s *Store) Revoke(ctx context.Context, tokenID string) error {
	if _, err := s.db.ExecContext(ctx, qRevoke, tokenID); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForUser revokes every Active record of the user and returns
// how many transitioned.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, qRevokeAllForUser, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return int(n), nil
}

// PurgeExpired deletes records past their expiry, regardless of status,
// and returns the number removed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, qPurgeExpired, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return int(n), nil
}

// Ping returns a point-in-time database availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return time.Since(start), nil
}
