package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/nexus/backend/internal/infrastructure/config"
)

// ErrBadCredentials is returned for any username/password mismatch. The
// caller cannot tell which part was wrong.
var ErrBadCredentials = errors.New("invalid username or password")

// CredentialChecker verifies the admin login against the configured
// username and bcrypt password hash
type CredentialChecker struct {
	username     string
	passwordHash []byte
}

// NewCredentialChecker creates a checker from the JWT config section
func NewCredentialChecker(cfg config.JWTConfig) *CredentialChecker {
	return &CredentialChecker{
		username:     cfg.AdminUsername,
		passwordHash: []byte(cfg.AdminPasswordHash),
	}
}

// Check verifies a login attempt. The bcrypt comparison runs even for a
// wrong username so both failure paths take comparable time.
func (c *CredentialChecker) Check(username, password string) error {
	if len(c.passwordHash) == 0 {
		return ErrBadCredentials
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passwordErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))

	if !usernameOK || passwordErr != nil {
		return ErrBadCredentials
	}
	return nil
}
