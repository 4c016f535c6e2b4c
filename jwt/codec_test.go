package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"
)

func hs256Config() Config {
	return Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("unit-test-signing-key-0123456789"),
	}
}

func ed25519Config(t *testing.T) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	return Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	}
}

func TestCodecHS256RoundTrip(t *testing.T) {
	codec, err := NewCodec(hs256Config())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	token, err := codec.IssueAccess("u1", "alice@example.com", "admin")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	claims, err := codec.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "u1" || claims.Email != "alice@example.com" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestCodecEd25519RoundTrip(t *testing.T) {
	codec, err := NewCodec(ed25519Config(t))
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	token, err := codec.IssueAccess("u2", "bob@example.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	claims, err := codec.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "u2" {
		t.Fatalf("unexpected uid %q", claims.UID)
	}
}

func TestCodecRejectsWrongKey(t *testing.T) {
	issuer, err := NewCodec(hs256Config())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	other := hs256Config()
	other.PrivateKey = []byte("a-completely-different-signing-k")
	verifier, err := NewCodec(other)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	token, err := issuer.IssueAccess("u1", "", "")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	if _, err := verifier.ParseAccess(token); err == nil {
		t.Fatal("expected parse to fail with wrong key")
	}
}

func TestCodecRejectsTamperedPayload(t *testing.T) {
	codec, err := NewCodec(hs256Config())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	token, err := codec.IssueAccess("u1", "", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	if _, err := codec.ParseAccess(tampered); err == nil {
		t.Fatal("expected parse to fail on tampered payload")
	}
}

func TestCodecRejectsExpiredToken(t *testing.T) {
	cfg := hs256Config()
	cfg.AccessTTL = time.Millisecond
	codec, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	token, err := codec.IssueAccess("u1", "", "")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := codec.ParseAccess(token); err == nil {
		t.Fatal("expected parse to fail on expired token")
	}
}

func TestCodecRejectsCrossAlgorithmTokens(t *testing.T) {
	hmac, err := NewCodec(hs256Config())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	ed, err := NewCodec(ed25519Config(t))
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	hmacToken, err := hmac.IssueAccess("u1", "", "")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	if _, err := ed.ParseAccess(hmacToken); err == nil {
		t.Fatal("ed25519 verifier must reject hs256 tokens")
	}
}

func TestCodecIssuerAndAudienceEnforced(t *testing.T) {
	cfg := hs256Config()
	cfg.Issuer = "tokengate-test"
	cfg.Audience = "api"
	codec, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	token, err := codec.IssueAccess("u1", "", "")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	if _, err := codec.ParseAccess(token); err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}

	strict := cfg
	strict.Issuer = "someone-else"
	verifier, err := NewCodec(strict)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	if _, err := verifier.ParseAccess(token); err == nil {
		t.Fatal("expected parse to fail on issuer mismatch")
	}
}

func TestNewCodecConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"negative leeway", func(c *Config) { c.Leeway = -time.Second }},
		{"excessive leeway", func(c *Config) { c.Leeway = 3 * time.Minute }},
		{"hs256 without key", func(c *Config) { c.PrivateKey = nil }},
		{"unknown method", func(c *Config) { c.SigningMethod = "rs256" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := hs256Config()
			tc.mutate(&cfg)
			if _, err := NewCodec(cfg); err == nil {
				t.Fatal("expected config rejection")
			}
		})
	}
}

func TestCodecVerifyKeysRequireKid(t *testing.T) {
	base := hs256Config()
	base.KeyID = "k1"
	base.VerifyKeys = map[string][]byte{
		"k1": base.PrivateKey,
	}
	codec, err := NewCodec(base)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	token, err := codec.IssueAccess("u1", "", "")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	if _, err := codec.ParseAccess(token); err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}

	// A codec without the kid header in its tokens is rejected by a
	// verifier that demands one.
	plain, err := NewCodec(hs256Config())
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	plainToken, err := plain.IssueAccess("u1", "", "")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	if _, err := codec.ParseAccess(plainToken); err == nil {
		t.Fatal("expected parse to fail without kid header")
	}
}
