package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // "admin" or "student"
	// SessionToken carries the server-side opaque token for student
	// bearers; validation always compares it against the stored row.
	SessionToken string `json:"stk,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and parses the bearer tokens handed to admins and students.
type Tokens struct{ hmac []byte }

func NewTokens(secret string) *Tokens { return &Tokens{hmac: []byte(secret)} }

func (t *Tokens) IssueAdmin(user string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  user,
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "orienta",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(8 * time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.hmac)
}

// IssueStudent wraps the opaque session token into a long-lived bearer; the
// envelope outliving the session row is harmless since validation checks
// the row on every request.
func (t *Tokens) IssueStudent(studentID int64, sessionToken string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:          strconv.FormatInt(studentID, 10),
		Role:         RoleStudent,
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "orienta",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(365 * 24 * time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.hmac)
}

func (t *Tokens) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return t.hmac, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	c, _ := token.Claims.(*Claims)
	return c, nil
}

func (c *Claims) StudentID() (int64, error) {
	return strconv.ParseInt(c.Sub, 10, 64)
}
