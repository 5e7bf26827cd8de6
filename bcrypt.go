package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements PasswordAuthenticator with an adaptive bcrypt cost.
// Every hash carries its own random salt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using the build default cost
func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{Cost: passwordHashCost()}
}

// HashPassword will generate a password hash
func (h BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	cost := h.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(hash), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if password == "" || hash == "" {
		return ErrMismatchedHashAndPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// HashPassword hashes with the default hasher
func HashPassword(password string) (string, error) {
	return NewBcryptHasher().HashPassword(password)
}

// ComparePasswordAndHash compares with the default hasher
func ComparePasswordAndHash(password, hash string) error {
	return NewBcryptHasher().ComparePasswordAndHash(password, hash)
}

var _ PasswordAuthenticator = BcryptHasher{}
