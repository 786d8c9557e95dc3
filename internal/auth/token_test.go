package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispute-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret", 60)

	role := domain.ArbiterRoleArbiter
	token, exp, err := manager.GenerateToken("arb-1", domain.SubjectTypeArbiter, &role)
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := manager.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "arb-1", claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeArbiter, claims.Subject)
	require.NotNil(t, claims.Role)
	assert.Equal(t, domain.ArbiterRoleArbiter, *claims.Role)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", 60)
	verifier := NewTokenManager("secret-b", 60)

	token, _, err := issuer.GenerateToken("u-1", domain.SubjectTypeUser, nil)
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.Error(t, err)
}

func TestPasswordHashAndCompare(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "hunter2"))
	assert.Error(t, ComparePassword(hash, "hunter3"))
}
