package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexus/backend/internal/infrastructure/config"
)

func newTestChecker(t *testing.T) *CredentialChecker {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewCredentialChecker(config.JWTConfig{
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
	})
}

func TestCredentialChecker_Valid(t *testing.T) {
	checker := newTestChecker(t)

	assert.NoError(t, checker.Check("admin", "s3cret-pass"))
}

func TestCredentialChecker_WrongPassword(t *testing.T) {
	checker := newTestChecker(t)

	assert.ErrorIs(t, checker.Check("admin", "wrong"), ErrBadCredentials)
}

func TestCredentialChecker_WrongUsername(t *testing.T) {
	checker := newTestChecker(t)

	assert.ErrorIs(t, checker.Check("root", "s3cret-pass"), ErrBadCredentials)
}

func TestCredentialChecker_NoHashConfigured(t *testing.T) {
	checker := NewCredentialChecker(config.JWTConfig{AdminUsername: "admin"})

	assert.ErrorIs(t, checker.Check("admin", "anything"), ErrBadCredentials)
}
