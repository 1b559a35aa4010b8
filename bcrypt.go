package accounts

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash with the default cost
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, bcrypt.DefaultCost)
}

// HashPasswordWithCost will generate a password hash with the given cost
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", NewInternalError(err, "failed to hash password")
	}
	return string(h), nil
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

// VerifyCredential reports whether password matches hash
func VerifyCredential(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return ComparePasswordAndHash(password, hash) == nil
}

// burnCredentialCheck spends one bcrypt comparison against dummy and
// discards the result
func burnCredentialCheck(dummy, password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummy), []byte(password))
}

// RandomPasswordHash hashes a random password at cost. The unknown-account
// login path compares against it so it costs the same as a wrong password.
func RandomPasswordHash(cost int) string {
	return mustHash(uuid.NewString(), cost)
}

func mustHash(password string, cost int) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		panic(err)
	}
	return string(h)
}
