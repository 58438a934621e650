// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/linkup-social/chat-platform/internal/auth"
	"github.com/linkup-social/chat-platform/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"
	// UserKey is the context key for the authenticated user.
	UserKey ContextKey = "user"
)

// Authenticator resolves bearer credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*model.User, *auth.Claims, error)
}

// Auth creates bearer authentication middleware. Only verified users pass.
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if model.KindOf(err) == "" {
					writeJSONError(w, http.StatusInternalServerError, "authentication unavailable")
					return
				}
				writeJSONError(w, http.StatusUnauthorized, model.PublicMessage(err, "unauthorized"))
				return
			}

			if state := requestStateFrom(r.Context()); state != nil {
				state.userID = user.ID
			}

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserKey, user)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetUser gets the authenticated user from context.
func GetUser(ctx context.Context) *model.User {
	if v, ok := ctx.Value(UserKey).(*model.User); ok {
		return v
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
