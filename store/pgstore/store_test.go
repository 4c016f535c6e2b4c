package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mfreitas/tokengate/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock failed: %v", err)
	}

	return New(db), mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	}
}

func TestCreateInsertsActiveRecord(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := st.Create(context.Background(), "u1", time.Hour)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rec.Status != store.StatusActive {
		t.Fatalf("expected active, got %q", rec.Status)
	}
	if rec.TokenID == "" {
		t.Fatal("expected generated token id")
	}
	if !rec.ExpiresAt.After(rec.IssuedAt) {
		t.Fatal("expiry must follow issuance")
	}
}

func TestCreateInsertFailureMapsToUnavailable(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	if _, err := st.Create(context.Background(), "u1", time.Hour); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLookupScansRecord(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	issued := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)

	mock.ExpectQuery(`SELECT user_id, issued_at, expires_at, status`).
		WithArgs("tok1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at", "status"}).
			AddRow("u1", issued, expires, "active"))

	rec, err := st.Lookup(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if rec.UserID != "u1" || rec.Status != store.StatusActive {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestLookupUnknownToken(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`SELECT user_id, issued_at, expires_at, status`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at", "status"}))

	if _, err := st.Lookup(context.Background(), "ghost"); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestMarkRotatedWinsTheUpdate(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	issued := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)

	mock.ExpectQuery(`UPDATE refresh_tokens`).
		WithArgs("tok1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at"}).
			AddRow("u1", issued, expires))

	rec, err := st.MarkRotated(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if rec.Status != store.StatusRotated {
		t.Fatalf("expected rotated, got %q", rec.Status)
	}
	if rec.UserID != "u1" {
		t.Fatalf("expected owner u1, got %q", rec.UserID)
	}
}

func TestMarkRotatedClassifiesNotActive(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`UPDATE refresh_tokens`).
		WithArgs("tok1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at"}))

	mock.ExpectQuery(`SELECT user_id, issued_at, expires_at, status`).
		WithArgs("tok1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at", "status"}).
			AddRow("u1", time.Now().Add(-time.Hour), time.Now().Add(time.Hour), "rotated"))

	if _, err := st.MarkRotated(context.Background(), "tok1"); !errors.Is(err, store.ErrTokenNotActive) {
		t.Fatalf("expected ErrTokenNotActive, got %v", err)
	}
}

func TestMarkRotatedClassifiesExpired(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`UPDATE refresh_tokens`).
		WithArgs("tok1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at"}))

	mock.ExpectQuery(`SELECT user_id, issued_at, expires_at, status`).
		WithArgs("tok1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at", "status"}).
			AddRow("u1", time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour), "active"))

	if _, err := st.MarkRotated(context.Background(), "tok1"); !errors.Is(err, store.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestMarkRotatedClassifiesNotFound(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectQuery(`UPDATE refresh_tokens`).
		WithArgs("ghost", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at"}))

	mock.ExpectQuery(`SELECT user_id, issued_at, expires_at, status`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "issued_at", "expires_at", "status"}))

	if _, err := st.MarkRotated(context.Background(), "ghost"); !errors.Is(err, store.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestRevokeIsUnconditional(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(`UPDATE refresh_tokens`).
		WithArgs("tok1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Zero rows affected is still success: revoking a missing or
	// already-terminal token is a no-op.
	if err := st.Revoke(context.Background(), "tok1"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
}

func TestRevokeAllForUserReturnsAffectedCount(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(`UPDATE refresh_tokens`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := st.RevokeAllForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}

func TestPurgeExpiredReturnsDeletedCount(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(`DELETE FROM refresh_tokens`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := st.PurgeExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5, got %d", n)
	}
}

func TestPurgeExpiredFailureMapsToUnavailable(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec(`DELETE FROM refresh_tokens`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	if _, err := st.PurgeExpired(context.Background(), time.Now()); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
