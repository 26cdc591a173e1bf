package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned on any admin login failure; callers
// record it with the lockout guard.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminAuth checks the single env-configured administrator credential.
type AdminAuth struct {
	user     string
	passHash []byte
	tokens   *Tokens
}

func NewAdminAuth(user, passHash string, tokens *Tokens) *AdminAuth {
	return &AdminAuth{user: user, passHash: []byte(passHash), tokens: tokens}
}

// Login verifies the credential pair and issues an admin bearer token.
func (a *AdminAuth) Login(user, pass string) (string, error) {
	if user != a.user {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(pass)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.tokens.IssueAdmin(user)
}
