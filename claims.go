package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ActionClaims is the payload of a single-use action token: the owning
// account, the purpose, and for email changes the candidate address.
type ActionClaims struct {
	jwt.RegisteredClaims
	Purpose  string `json:"purpose,omitempty"`
	NewEmail string `json:"email,omitempty"`
}

// AccountID returns the embedded account identifier.
func (c *ActionClaims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Kind returns the token purpose as a TokenKind.
func (c *ActionClaims) Kind() TokenKind {
	return TokenKind(c.Purpose)
}

// SessionClaims is the payload of the session credential issued on a
// successful login.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID    string   `json:"uid,omitempty"`
	Levels []string `json:"levels,omitempty"`
	Lang   string   `json:"lang,omitempty"`
}

// AccountID returns the account the session was issued for.
func (c *SessionClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// HasLevel checks if the session carries a role of the given kind.
func (c *SessionClaims) HasLevel(kind RoleKind) bool {
	for _, lvl := range c.Levels {
		if RoleKind(lvl) == kind {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *SessionClaims) Issued() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}

func levelKinds(account *Account) []string {
	kinds := make([]string, 0, len(account.Levels))
	for _, lvl := range account.Levels {
		if lvl != nil {
			kinds = append(kinds, string(lvl.Kind))
		}
	}
	return kinds
}
