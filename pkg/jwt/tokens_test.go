package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("user-1", "tenant-1", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := Parse(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "tenant-1", claims.TenantID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", "tenant-1", "secret", time.Minute)
	require.NoError(t, err)
	_, err = Parse(token, "other")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := GenerateToken("user-1", "tenant-1", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(token, "secret")
	assert.Error(t, err)
}

func TestRevealGrant(t *testing.T) {
	grant, err := GenerateRevealGrant("user-1", "hash", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := ParseRevealGrant(grant, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "hash", claims.KeyHash)
}

func TestAccessTokenIsNotARevealGrant(t *testing.T) {
	token, err := GenerateToken("user-1", "tenant-1", "secret", time.Minute)
	require.NoError(t, err)
	_, err = ParseRevealGrant(token, "secret")
	assert.Error(t, err)
}
