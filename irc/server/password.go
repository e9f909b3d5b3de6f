package server

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordChecker verifies the connection password sent with PASS.
type PasswordChecker interface {
	Check(candidate string) bool
}

type plainPassword []byte

func (p plainPassword) Check(candidate string) bool {
	return subtle.ConstantTimeCompare(p, []byte(candidate)) == 1
}

type bcryptPassword []byte

func (p bcryptPassword) Check(candidate string) bool {
	return bcrypt.CompareHashAndPassword(p, []byte(candidate)) == nil
}

// NewPasswordChecker returns a checker for a plain text password or, when
// hashed is set, for a bcrypt hash.
func NewPasswordChecker(password string, hashed bool) (PasswordChecker, error) {
	if password == "" {
		return nil, fmt.Errorf("password must not be empty")
	}
	if !hashed {
		return plainPassword(password), nil
	}
	if _, err := bcrypt.Cost([]byte(password)); err != nil {
		return nil, fmt.Errorf("password is not a bcrypt hash: %w", err)
	}
	return bcryptPassword(password), nil
}
