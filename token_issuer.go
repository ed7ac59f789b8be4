package accounts

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenIssuer mints and verifies signed, time-bounded action tokens and
// session credentials. Signing and verification are pure; persistence of the
// resulting values is the caller's concern.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	logger     Logger
	now        func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with the given key.
func NewTokenIssuer(signingKey []byte, issuer string) *TokenIssuer {
	return &TokenIssuer{
		signingKey: signingKey,
		issuer:     issuer,
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (ti *TokenIssuer) WithLogger(logger Logger) *TokenIssuer {
	if logger != nil {
		ti.logger = logger
	}
	return ti
}

// WithClock injects a custom clock (useful for tests).
func (ti *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	if clock != nil {
		ti.now = clock
	}
	return ti
}

// IssueActionToken produces a signed value embedding the account id, the
// purpose, issued-at, and expiry.
func (ti *TokenIssuer) IssueActionToken(account *Account, kind TokenKind, ttl time.Duration) (string, error) {
	return ti.issue(account, kind, "", ttl)
}

// IssueEmailChangeToken additionally embeds the candidate email address. The
// change is only applied once the token is confirmed.
func (ti *TokenIssuer) IssueEmailChangeToken(account *Account, newEmail string, ttl time.Duration) (string, error) {
	if newEmail == "" {
		return "", goerrors.New("email change token requires a candidate email", goerrors.CategoryBadInput)
	}
	return ti.issue(account, TokenConfirmEmail, newEmail, ttl)
}

func (ti *TokenIssuer) issue(account *Account, kind TokenKind, newEmail string, ttl time.Duration) (string, error) {
	if account == nil {
		return "", goerrors.New("account is required", goerrors.CategoryBadInput)
	}
	if ttl <= 0 {
		return "", goerrors.New("token TTL must be positive", goerrors.CategoryBadInput)
	}

	now := ti.now()
	claims := &ActionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose:  string(kind),
		NewEmail: newEmail,
	}
	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	value, err := token.SignedString(ti.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign action token")
	}

	return value, nil
}

// IssueSessionToken mints the session credential returned on a successful
// login, carrying the account's role kinds and preferred language.
func (ti *TokenIssuer) IssueSessionToken(account *Account, ttl time.Duration) (string, error) {
	if account == nil {
		return "", goerrors.New("account is required", goerrors.CategoryBadInput)
	}

	now := ti.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:    account.ID.String(),
		Levels: levelKinds(account),
		Lang:   account.Language,
	}
	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	value, err := token.SignedString(ti.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return value, nil
}

// ValidateSession parses and validates a session credential.
func (ti *TokenIssuer) ValidateSession(value string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(value, &SessionClaims{}, ti.keyFunc,
		jwt.WithIssuer(ti.issuer),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidOrExpiredToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, ErrInvalidOrExpiredToken
	}

	return claims, nil
}

// Verify checks signature integrity, expiry, purpose, and that the embedded
// account id matches. Signature/format errors and expiry both collapse to
// "not valid"; the caller is never told which condition failed.
func (ti *TokenIssuer) Verify(value string, accountID uuid.UUID, kind TokenKind) bool {
	token, err := jwt.ParseWithClaims(value, &ActionClaims{}, ti.keyFunc,
		jwt.WithIssuer(ti.issuer),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil || !token.Valid {
		return false
	}

	claims, ok := token.Claims.(*ActionClaims)
	if !ok {
		return false
	}

	if claims.Kind() != kind {
		return false
	}

	embedded, err := claims.AccountID()
	if err != nil {
		return false
	}

	return embedded == accountID
}

// ExtractAccountID decodes the embedded account id without verifying the
// signature. It is only good for routing lookups; callers must still Verify
// before trusting the content.
func (ti *TokenIssuer) ExtractAccountID(value string) (uuid.UUID, error) {
	claims, err := ti.extract(value)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.AccountID()
}

// ExtractEmail decodes the embedded candidate email without verification.
func (ti *TokenIssuer) ExtractEmail(value string) (string, error) {
	claims, err := ti.extract(value)
	if err != nil {
		return "", err
	}
	return claims.NewEmail, nil
}

func (ti *TokenIssuer) extract(value string) (*ActionClaims, error) {
	claims := &ActionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err != nil {
		return nil, ErrInvalidOrExpiredToken
	}
	return claims, nil
}

func (ti *TokenIssuer) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		ti.logger.Error("token issuer encountered unexpected signing method: %v", t.Header["alg"])
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return ti.signingKey, nil
}

// EncodeTransport wraps a token value in a reversible ASCII-safe encoding for
// use in URLs. Transport safety only; the security guarantee is the signature.
func EncodeTransport(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// DecodeTransport reverses EncodeTransport.
func DecodeTransport(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidOrExpiredToken
	}
	return string(raw), nil
}
