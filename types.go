package tokengate

import "context"

// User is the identity returned by a [UserProvider]. The engine never
// sees password hashes; credential checking stays on the provider side.
type User struct {
	ID    string
	Email string
	Role  string
}

// UserProvider is the interface callers implement to integrate tokengate
// with their user database.
type UserProvider interface {
	// VerifyCredentials checks the email+password pair and returns the
	// matching user. Unknown email and wrong password must both return
	// ErrInvalidCredentials so callers cannot probe for accounts.
	VerifyCredentials(ctx context.Context, email, password string) (User, error)

	// GetUserByID returns the user for an ID taken from a stored refresh
	// record.
	GetUserByID(ctx context.Context, userID string) (User, error)
}

// TokenPair is a freshly issued access+refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         User
}

// AuthResult is returned by [Engine.Authenticate]. It carries the
// identity claims of a verified access token.
type AuthResult struct {
	UserID string
	Email  string
	Role   string
}
