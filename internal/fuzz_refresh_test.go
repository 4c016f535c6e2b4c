package internal

import (
	"testing"
)

// FuzzParseTokenID exercises token ID decoding with arbitrary strings.
// Goal: no panics; invalid inputs must be rejected with errors.
func FuzzParseTokenID(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	f.Add("!!!not-base64!!!")
	f.Add("aGVsbG8=")
	f.Add("dG9vLXNob3J0")

	if id, err := NewTokenID(); err == nil {
		f.Add(id.String())
	}

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseTokenID(input)
		if err != nil {
			if ValidTokenID(input) {
				t.Fatalf("ValidTokenID accepted input ParseTokenID rejected: %q", input)
			}
			return
		}

		// A decoded ID must survive the round trip.
		reEncoded := id.String()
		id2, err := ParseTokenID(reEncoded)
		if err != nil {
			t.Fatalf("roundtrip decode failed: %v", err)
		}
		if id2 != id {
			t.Error("roundtrip token ID mismatch")
		}
	})
}
