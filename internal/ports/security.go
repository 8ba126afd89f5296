package ports

import "time"

// AuthClaims is the validated identity extracted from a platform token.
// The identity provider itself is external; the service only verifies its
// signatures and reads uid + role.
type AuthClaims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// TokenVerifier validates bearer tokens issued by the identity provider.
type TokenVerifier interface {
	ParseAndValidate(raw string) (AuthClaims, error)
}
