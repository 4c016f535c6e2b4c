package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	tokengate "github.com/mfreitas/tokengate"
	"github.com/mfreitas/tokengate/store/redisstore"
)

func newTestRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	provider, err := newStaticProvider([]string{
		"alice@example.com:correct-horse-42:admin",
		"bob@example.com:battery-staple-99:member",
	})
	if err != nil {
		t.Fatalf("provider failed: %v", err)
	}

	var cfg tokengate.Config
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("router-test-signing-key-0123456789")
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.Refresh.TTL = time.Hour

	engine, err := tokengate.New().
		WithConfig(cfg).
		WithStore(redisstore.New(rdb, "rt")).
		WithUserProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	return newRouter(engine, zap.NewNop(), false), func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func doJSON(t *testing.T, router http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func loginAs(t *testing.T, router http.Handler, email, pass string) (access, refresh string) {
	t.Helper()

	rr := doJSON(t, router, http.MethodPost, "/auth/login", "",
		`{"email":"`+email+`","password":"`+pass+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken, resp.RefreshToken
}

func TestLogoutRequiresBearerToken(t *testing.T) {
	router, done := newTestRouter(t)
	defer done()

	access, refresh := loginAs(t, router, "alice@example.com", "correct-horse-42")

	// Unauthenticated logout is rejected and revokes nothing.
	rr := doJSON(t, router, http.MethodPost, "/auth/logout", "",
		`{"refreshToken":"`+refresh+`"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", rr.Code)
	}

	// The same call with the access token succeeds.
	rr = doJSON(t, router, http.MethodPost, "/auth/logout", access,
		`{"refreshToken":"`+refresh+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer, got %d: %s", rr.Code, rr.Body.String())
	}

	// The refresh token is now dead.
	rr = doJSON(t, router, http.MethodPost, "/auth/refresh", "",
		`{"refreshToken":"`+refresh+`"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}

func TestAdminCleanupRequiresAdminRole(t *testing.T) {
	router, done := newTestRouter(t)
	defer done()

	memberAccess, _ := loginAs(t, router, "bob@example.com", "battery-staple-99")
	rr := doJSON(t, router, http.MethodPost, "/admin/cleanup-tokens", memberAccess, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", rr.Code)
	}

	adminAccess, _ := loginAs(t, router, "alice@example.com", "correct-horse-42")
	rr = doJSON(t, router, http.MethodPost, "/admin/cleanup-tokens", adminAccess, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		TokensRemoved *int `json:"tokensRemoved"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode cleanup response: %v", err)
	}
	if resp.TokensRemoved == nil {
		t.Fatal("expected tokensRemoved field in response")
	}
}
