package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	tokengate "github.com/mfreitas/tokengate"
	"github.com/mfreitas/tokengate/password"
)

// staticProvider serves credentials seeded from configuration. It exists
// so the binary runs standalone; production deployments implement
// tokengate.UserProvider against their own user database.
type staticProvider struct {
	mu      sync.RWMutex
	hasher  *password.Hasher
	byID    map[string]tokengate.User
	byEmail map[string]string
	hashes  map[string]string
}

// newStaticProvider parses "email:password:role" entries. Seed passwords
// are argon2id-hashed immediately and the plaintext is discarded. IDs are
// generated, so they change across restarts.
func newStaticProvider(entries []string) (*staticProvider, error) {
	hasher, err := password.NewHasher(password.DefaultParams())
	if err != nil {
		return nil, err
	}

	p := &staticProvider{
		hasher:  hasher,
		byID:    make(map[string]tokengate.User),
		byEmail: make(map[string]string),
		hashes:  make(map[string]string),
	}

	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid user entry %q, want email:password:role", entry)
		}

		hash, err := hasher.Hash(parts[1])
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", parts[0], err)
		}

		u := tokengate.User{
			ID:    uuid.NewString(),
			Email: parts[0],
			Role:  parts[2],
		}
		p.byID[u.ID] = u
		p.byEmail[u.Email] = u.ID
		p.hashes[u.ID] = hash
	}

	return p, nil
}

func (p *staticProvider) VerifyCredentials(_ context.Context, email, pass string) (tokengate.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byEmail[email]
	if !ok {
		return tokengate.User{}, tokengate.ErrInvalidCredentials
	}

	match, err := p.hasher.Verify(pass, p.hashes[id])
	if err != nil || !match {
		return tokengate.User{}, tokengate.ErrInvalidCredentials
	}
	return p.byID[id], nil
}

func (p *staticProvider) GetUserByID(_ context.Context, userID string) (tokengate.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.byID[userID]
	if !ok {
		return tokengate.User{}, fmt.Errorf("user %s not found", userID)
	}
	return u, nil
}
