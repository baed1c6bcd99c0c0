package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"image_gallery/internal/lib/jwt"
	"image_gallery/internal/lib/logger/sl"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("permission denied")
)

// Auth аутентификация единственного администратора галерей из конфигурации
type Auth struct {
	log          *slog.Logger
	login        string
	passwordHash []byte
	secret       string
	tokenTTL     time.Duration
}

func New(log *slog.Logger, login, passwordHash, secret string, tokenTTL time.Duration) *Auth {
	return &Auth{
		log:          log,
		login:        login,
		passwordHash: []byte(passwordHash),
		secret:       secret,
		tokenTTL:     tokenTTL,
	}
}

func (a *Auth) Login(ctx context.Context, login, password string) (string, error) {
	const op = "auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("login", login),
	)

	log.Info("attempting to login admin")

	if subtle.ConstantTimeCompare([]byte(login), []byte(a.login)) != 1 {
		log.Warn("unknown login")

		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := jwt.NewToken(a.login, []string{jwt.PermissionManageImageGallery}, a.secret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("admin logged in successfully")

	return token, nil
}

// Authorize проверяет токен и право на управление галереями
func (a *Auth) Authorize(ctx context.Context, token string) (string, error) {
	const op = "auth.Authorize"

	claims, err := jwt.Parse(token, a.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !claims.HasPermission(jwt.PermissionManageImageGallery) {
		return "", fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return claims.Subject, nil
}

// IsAdmin проверяет логин, сохраненный в сессии
func (a *Auth) IsAdmin(login string) bool {
	return login != "" && subtle.ConstantTimeCompare([]byte(login), []byte(a.login)) == 1
}
