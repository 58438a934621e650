package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkup-social/chat-platform/internal/auth"
	"github.com/linkup-social/chat-platform/internal/config"
	"github.com/linkup-social/chat-platform/internal/gateway"
	"github.com/linkup-social/chat-platform/internal/handler"
	"github.com/linkup-social/chat-platform/internal/model"
	"github.com/linkup-social/chat-platform/internal/presence"
	"github.com/linkup-social/chat-platform/internal/service"
	"github.com/linkup-social/chat-platform/internal/store"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.Authenticator) {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	users := store.NewUserDirectory(db)
	require.NoError(t, users.CreateUser(ctx, &model.User{ID: "u1", FirstName: "Una", IsVerified: true}))

	cfg := config.Load()
	log := logger.NewNop()
	convs := store.NewConversationStore(db)
	authenticator := auth.NewAuthenticator("test-secret", "Bearer", users)
	chat := service.NewChatService(convs, users, service.NopPublisher{}, log)
	groups := service.NewGroupService(convs, users, service.NopPublisher{}, log)

	router := newRouter(&routes{
		cfg:  cfg,
		log:  log,
		auth: authenticator,
		health: handler.NewHealthHandler(map[string]handler.Check{
			"database": func(ctx context.Context) error { return store.Ping(ctx, db) },
		}),
		chats:   handler.NewChatHandler(chat, log),
		groups:  handler.NewGroupHandler(groups, log),
		streams: handler.NewStreamHandler(chat, nil, log),
		gateway: gateway.New(authenticator, chat, presence.NewRegistry(), gateway.DefaultConfig(), log),
	})
	return router, authenticator
}

func TestRouter(t *testing.T) {
	router, authenticator := newTestRouter(t)
	token, err := authenticator.Issue("u1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"ready", http.MethodGet, "/ready", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"api requires auth", http.MethodGet, "/api/v1/groups", "", http.StatusUnauthorized},
		{"api with auth", http.MethodGet, "/api/v1/groups", token, http.StatusOK},
		{"gateway rejects before upgrade", http.MethodGet, "/ws", "", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/v1/nope", token, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", authenticator.Credential(tt.token))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
		})
	}
}
