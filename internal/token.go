package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const tokenIDSize = 32

// TokenID is the raw refresh-token identifier handed to clients. It is
// the only secret in the refresh protocol: possession of the ID is
// possession of the token.
type TokenID [tokenIDSize]byte

func NewTokenID() (TokenID, error) {
	var id TokenID
	_, err := rand.Read(id[:])
	return id, err
}

func (t TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func ParseTokenID(tokenID string) (TokenID, error) {
	var id TokenID

	raw, err := base64.RawURLEncoding.DecodeString(tokenID)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid token id size")
	}

	copy(id[:], raw)
	return id, nil
}

// ValidTokenID reports whether the string is a well-formed token ID.
// It rejects malformed input before any store round-trip without
// revealing which check failed.
func ValidTokenID(tokenID string) bool {
	_, err := ParseTokenID(tokenID)
	return err == nil
}
