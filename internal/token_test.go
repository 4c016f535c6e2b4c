package internal

import (
	"strings"
	"testing"
)

func TestNewTokenIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := NewTokenID()
		if err != nil {
			t.Fatalf("NewTokenID failed: %v", err)
		}
		s := id.String()
		if seen[s] {
			t.Fatal("duplicate token id generated")
		}
		seen[s] = true
	}
}

func TestTokenIDRoundTrip(t *testing.T) {
	id, err := NewTokenID()
	if err != nil {
		t.Fatalf("NewTokenID failed: %v", err)
	}

	parsed, err := ParseTokenID(id.String())
	if err != nil {
		t.Fatalf("ParseTokenID failed: %v", err)
	}
	if parsed != id {
		t.Fatal("round trip mismatch")
	}
}

func TestTokenIDStringIsURLSafe(t *testing.T) {
	id, err := NewTokenID()
	if err != nil {
		t.Fatalf("NewTokenID failed: %v", err)
	}

	s := id.String()
	if strings.ContainsAny(s, "+/=") {
		t.Fatalf("token id contains non-url-safe characters: %q", s)
	}
	if len(s) != 43 {
		t.Fatalf("unexpected encoded length %d", len(s))
	}
}

func TestValidTokenIDRejectsMalformedInput(t *testing.T) {
	id, err := NewTokenID()
	if err != nil {
		t.Fatalf("NewTokenID failed: %v", err)
	}
	if !ValidTokenID(id.String()) {
		t.Fatal("expected generated id to validate")
	}

	bad := []string{
		"",
		"short",
		strings.Repeat("A", 42),
		strings.Repeat("A", 44),
		id.String()[:42] + "!",
		id.String() + "=",
	}
	for _, s := range bad {
		if ValidTokenID(s) {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}
