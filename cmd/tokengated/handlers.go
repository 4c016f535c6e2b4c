package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	tokengate "github.com/mfreitas/tokengate"
	"github.com/mfreitas/tokengate/middleware"
)

type api struct {
	engine *tokengate.Engine
	log    *zap.Logger
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	result, err := a.engine.Login(requestContext(r), body.Email, body.Password)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"user": map[string]string{
			"id":    result.User.ID,
			"email": result.User.Email,
			"role":  result.User.Role,
		},
	})
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    res.UserID,
		"email": res.Email,
		"role":  res.Role,
	})
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	pair, err := a.engine.Refresh(requestContext(r), body.RefreshToken)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := a.engine.Logout(requestContext(r), body.RefreshToken); err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) logoutAll(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	n, err := a.engine.LogoutAll(requestContext(r), res.UserID)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}

	a.log.Info("revoked all sessions", zap.String("user_id", res.UserID), zap.Int("count", n))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := a.engine.Cleanup(requestContext(r))
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"tokensRemoved": n})
}

// writeEngineError maps engine sentinels onto HTTP statuses. Every
// authentication failure collapses to 401 so callers cannot infer token
// state from status codes.
func (a *api) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tokengate.ErrInvalidCredentials),
		errors.Is(err, tokengate.ErrUnauthenticated),
		errors.Is(err, tokengate.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, tokengate.ErrLoginRateLimited),
		errors.Is(err, tokengate.ErrRefreshRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests")
	case errors.Is(err, tokengate.ErrUnavailable):
		a.log.Error("backend unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		a.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ctx = tokengate.WithClientIP(ctx, host)
	ctx = tokengate.WithUserAgent(ctx, r.UserAgent())

	return ctx
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
