package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikouu/serdo-v2-sub001/internal/repository/memory"
	jwtpkg "github.com/rikouu/serdo-v2-sub001/pkg/jwt"
)

const secret = "test-secret"

func newService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, store, logger, secret, time.Hour), store
}

func TestSignupCreatesTenantAndToken(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	user, token, err := svc.Signup(ctx, " Alice@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, user.ID, user.TenantID)
	assert.NotEmpty(t, token.AccessToken)

	ids, err := store.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{user.TenantID}, ids)

	claims, err := jwtpkg.Parse(token.AccessToken, secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.TenantID, claims.TenantID)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "not-an-email", "correct horse")
	assert.ErrorIs(t, err, ErrEmailInvalid)

	_, _, err = svc.Signup(ctx, "bob@example.com", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, _, err = svc.Signup(ctx, "bob@example.com", "correct horse")
	require.NoError(t, err)
	_, _, err = svc.Signup(ctx, "BOB@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created, _, err := svc.Signup(ctx, "carol@example.com", "correct horse")
	require.NoError(t, err)

	user, token, err := svc.Login(ctx, "carol@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, token.AccessToken)

	_, _, err = svc.Login(ctx, "carol@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthorize(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created, token, err := svc.Signup(ctx, "dan@example.com", "correct horse")
	require.NoError(t, err)

	user, claims, err := svc.Authorize(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, created.TenantID, claims.TenantID)

	_, _, err = svc.Authorize(ctx, "  ")
	assert.ErrorIs(t, err, ErrTokenRequired)

	_, _, err = svc.Authorize(ctx, "garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	foreign, err := jwtpkg.GenerateToken(created.ID, created.TenantID, "other-secret", time.Hour)
	require.NoError(t, err)
	_, _, err = svc.Authorize(ctx, foreign)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	ghost, err := jwtpkg.GenerateToken("ghost", "ghost", secret, time.Hour)
	require.NoError(t, err)
	_, _, err = svc.Authorize(ctx, ghost)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
