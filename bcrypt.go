package accounts

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword rejects empty cleartext passwords before hashing.
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithTextCode("EMPTY_PASSWORD")

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
