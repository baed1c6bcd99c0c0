package auth

import (
	"context"
	"testing"
	"time"

	"image_gallery/internal/lib/jwt"
	"image_gallery/internal/lib/logger/handlers/slogdiscard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T) *Auth {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	return New(slogdiscard.NewDiscardLogger(), "admin", string(hash), "token-secret", time.Hour)
}

func TestAuth_Login(t *testing.T) {
	ctx := context.Background()
	a := newAuth(t)

	t.Run("success", func(t *testing.T) {
		token, err := a.Login(ctx, "admin", "s3cret-pass")
		require.NoError(t, err)

		claims, err := jwt.Parse(token, "token-secret")
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Subject)
		assert.True(t, claims.HasPermission(jwt.PermissionManageImageGallery))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := a.Login(ctx, "admin", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown login", func(t *testing.T) {
		_, err := a.Login(ctx, "root", "s3cret-pass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuth_Authorize(t *testing.T) {
	ctx := context.Background()
	a := newAuth(t)

	t.Run("valid token", func(t *testing.T) {
		token, err := a.Login(ctx, "admin", "s3cret-pass")
		require.NoError(t, err)

		subject, err := a.Authorize(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "admin", subject)
	})

	t.Run("missing permission", func(t *testing.T) {
		token, err := jwt.NewToken("admin", nil, "token-secret", time.Hour)
		require.NoError(t, err)

		_, err = a.Authorize(ctx, token)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("foreign token", func(t *testing.T) {
		token, err := jwt.NewToken("admin", []string{jwt.PermissionManageImageGallery}, "other", time.Hour)
		require.NoError(t, err)

		_, err = a.Authorize(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuth_IsAdmin(t *testing.T) {
	a := newAuth(t)

	assert.True(t, a.IsAdmin("admin"))
	assert.False(t, a.IsAdmin(""))
	assert.False(t, a.IsAdmin("guest"))
}
