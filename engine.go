package tokengate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/mfreitas/tokengate/internal"
	"github.com/mfreitas/tokengate/internal/rate"
	"github.com/mfreitas/tokengate/jwt"
	"github.com/mfreitas/tokengate/store"
)

// Engine is the token lifecycle coordinator. Construct one through
// [Builder.Build]; all methods are then safe for concurrent use.
type Engine struct {
	config       Config
	store        store.Store
	rateLimiter  *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
	codec        *jwt.Codec
	userProvider UserProvider
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded by the
// DropIfFull policy.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters and
// histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(id, n)
}

// Login verifies the credentials and, on success, issues an access
// token plus a fresh refresh token. Unknown email and wrong password
// are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.config.Security.EnableLoginThrottle && e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return nil, ErrLoginRateLimited
		}
	}

	if password == "" {
		e.recordLoginFailure(ctx, email, ip, "empty_password")
		return nil, ErrInvalidCredentials
	}

	user, err := e.userProvider.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			e.recordLoginFailure(ctx, email, ip, "credential_mismatch")
			return nil, ErrInvalidCredentials
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrUnavailable, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "provider_failure",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	password = ""

	rec, err := e.store.Create(ctx, user.ID, e.config.Refresh.TTL)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrUnavailable, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "refresh_create_failed",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	access, err := e.codec.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, tokenRef(rec.TokenID), err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "issue_access_failed",
			}
		})
		return nil, err
	}

	if e.config.Security.EnableLoginThrottle && e.rateLimiter != nil {
		// Limiter reset is best-effort and must not block successful login.
		if err := e.rateLimiter.ResetLogin(ctx, email, ip); err != nil {
			log.Print("tokengate: login limiter reset failed")
		}
	}

	e.metricInc(MetricTokenIssued)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, tokenRef(rec.TokenID), nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: rec.TokenID,
		User:         user,
	}, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, ip, reason string) {
	if e.config.Security.EnableLoginThrottle && e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			log.Print("tokengate: login limiter increment failed")
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
}

// Authenticate verifies an access token and returns its identity
// claims. No store round-trip: signature and expiry are the only
// checks, and every failure class collapses to ErrUnauthenticated.
func (e *Engine) Authenticate(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}()
	}

	claims, err := e.codec.ParseAccess(tokenStr)
	if err != nil {
		e.metricInc(MetricAuthFailure)
		return nil, ErrUnauthenticated
	}

	e.metricInc(MetricAuthSuccess)
	return &AuthResult{
		UserID: claims.UID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// Refresh exchanges a refresh token for a new access+refresh pair. The
// presented token is consumed atomically; under concurrent calls with
// the same token exactly one caller receives a pair. Unknown, expired,
// rotated, and revoked tokens all fail with ErrInvalidRefreshToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	if !internal.ValidTokenID(refreshToken) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrInvalidRefreshToken, func() map[string]string {
			return map[string]string{
				"reason": "malformed_token",
			}
		})
		return nil, ErrInvalidRefreshToken
	}

	if e.config.Security.EnableRefreshThrottle && e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRefresh(ctx, refreshToken); err != nil {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", tokenRef(refreshToken), ErrRefreshRateLimited, nil)
			e.emitRateLimit(ctx, "refresh", func() map[string]string {
				return map[string]string{
					"token": tokenRef(refreshToken),
				}
			})
			return nil, ErrRefreshRateLimited
		}
	}

	// The rotation sequence runs on a detached context: once the CAS
	// lands, a client disconnect must not leave the user without a
	// usable token.
	rotCtx := context.WithoutCancel(ctx)

	rec, err := e.store.MarkRotated(rotCtx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTokenNotActive):
			return nil, e.handleRefreshReuse(ctx, rotCtx, refreshToken)
		case errors.Is(err, store.ErrTokenNotFound), errors.Is(err, store.ErrTokenExpired):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", tokenRef(refreshToken), ErrInvalidRefreshToken, nil)
			return nil, ErrInvalidRefreshToken
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", tokenRef(refreshToken), ErrUnavailable, func() map[string]string {
				return map[string]string{
					"reason": "rotate_failed",
				}
			})
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	user, err := e.userProvider.GetUserByID(rotCtx, rec.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, rec.UserID, tokenRef(refreshToken), ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "user_lookup_failed",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	next, err := e.store.Create(rotCtx, rec.UserID, e.config.Refresh.TTL)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, rec.UserID, tokenRef(refreshToken), ErrUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "refresh_create_failed",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	access, err := e.codec.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, rec.UserID, tokenRef(refreshToken), err, func() map[string]string {
			return map[string]string{
				"reason": "issue_access_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricTokenIssued)
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, rec.UserID, tokenRef(refreshToken), nil, func() map[string]string {
		return map[string]string{
			"next_token": tokenRef(next.TokenID),
		}
	})

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: next.TokenID,
	}, nil
}

// handleRefreshReuse runs when a consumed token is presented again.
// The caller always gets ErrInvalidRefreshToken; family revocation is
// a side effect gated by configuration.
func (e *Engine) handleRefreshReuse(ctx, rotCtx context.Context, refreshToken string) error {
	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", tokenRef(refreshToken), ErrInvalidRefreshToken, nil)

	if e.config.Security.RevokeFamilyOnReuse {
		rec, err := e.store.Lookup(rotCtx, refreshToken)
		if err != nil {
			log.Print("tokengate: reuse lookup failed, family revocation skipped")
			return ErrInvalidRefreshToken
		}
		n, err := e.store.RevokeAllForUser(rotCtx, rec.UserID)
		if err != nil {
			log.Print("tokengate: family revocation failed")
			return ErrInvalidRefreshToken
		}
		e.metricInc(MetricFamilyRevoked)
		e.emitAudit(ctx, auditEventFamilyRevoked, true, rec.UserID, tokenRef(refreshToken), nil, func() map[string]string {
			return map[string]string{
				"revoked": strconv.Itoa(n),
			}
		})
	}

	return ErrInvalidRefreshToken
}

// Logout revokes the given refresh token. Access tokens are stateless
// and remain valid until expiry; only the refresh token dies here.
// Unknown and already-revoked tokens are not errors.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if !internal.ValidTokenID(refreshToken) {
		return nil
	}

	err := e.store.Revoke(ctx, refreshToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", tokenRef(refreshToken), ErrUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", tokenRef(refreshToken), nil, nil)
	return nil
}

// LogoutAll revokes every active refresh token of the user and returns
// how many were revoked. Already-issued access tokens are unaffected.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.store.RevokeAllForUser(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutAll, false, userID, "", ErrUnavailable, nil)
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.Itoa(n),
		}
	})
	return n, nil
}

// Cleanup deletes all expired refresh records, whatever their status,
// and returns the number removed. Active non-expired records are never
// touched.
func (e *Engine) Cleanup(ctx context.Context) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.store.PurgeExpired(ctx, time.Now())
	if err != nil {
		e.emitAudit(ctx, auditEventCleanupRun, false, "", "", ErrUnavailable, nil)
		return n, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	e.metricInc(MetricCleanupRun)
	e.metricAdd(MetricTokensPurged, uint64(n))
	e.emitAudit(ctx, auditEventCleanupRun, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"removed": strconv.Itoa(n),
		}
	})
	return n, nil
}

// tokenRef truncates a token ID for audit output. The full ID is the
// client-held secret and must never be logged.
func tokenRef(tokenID string) string {
	if len(tokenID) <= 8 {
		return tokenID
	}
	return tokenID[:8]
}
