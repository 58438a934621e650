// Package auth resolves bearer credentials to verified users. The same
// Authenticator guards the HTTP API and the WebSocket gateway.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linkup-social/chat-platform/internal/model"
)

var (
	ErrMissingCredential = model.NewError(model.KindAuthentication, "missing_credential", "Authentication required")
	ErrInvalidScheme     = model.NewError(model.KindAuthentication, "invalid_scheme", "Invalid authorization scheme")
	ErrInvalidToken      = model.NewError(model.KindAuthentication, "invalid_token", "Invalid token")
	ErrExpiredToken      = model.NewError(model.KindAuthentication, "expired_token", "Token has expired")
	ErrUnknownUser       = model.NewError(model.KindAuthentication, "unknown_user", "User not found")
	ErrUnverifiedAccount = model.NewError(model.KindAuthentication, "unverified_account", "Account is not verified")
)

// Claims are the JWT claims carried by access tokens. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// UserLookup resolves a user id.
type UserLookup interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// Authenticator verifies "<scheme> <token>" credentials.
type Authenticator struct {
	secret []byte
	scheme string
	users  UserLookup
}

// NewAuthenticator creates an authenticator. scheme is matched case-sensitively.
func NewAuthenticator(secret, scheme string, users UserLookup) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		scheme: scheme,
		users:  users,
	}
}

// Authenticate resolves credential to a verified user and its token claims.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*model.User, *Claims, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, nil, ErrMissingCredential
	}

	scheme, token, ok := strings.Cut(credential, " ")
	if !ok || scheme != a.scheme {
		return nil, nil, ErrInvalidScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, ErrMissingCredential
	}

	claims, err := a.parse(token)
	if err != nil {
		return nil, nil, err
	}

	user, err := a.users.FindUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, nil, ErrUnknownUser
		}
		return nil, nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if !user.IsVerified {
		return nil, nil, ErrUnverifiedAccount
	}

	return user, claims, nil
}

func (a *Authenticator) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue signs an access token for userID valid for ttl.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Credential formats token with the configured scheme.
func (a *Authenticator) Credential(token string) string {
	return a.scheme + " " + token
}
