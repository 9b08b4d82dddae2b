package security

import (
	"errors"
	"time"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// TokenClaims is the verified identity attached to a request. UserID is the
// internal profile id issued by the identity service.
type TokenClaims struct {
	UserID  string
	Role    string
	Exp     time.Time
	Issuer  string
	Subject string
}

type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (TokenClaims, error)
}
