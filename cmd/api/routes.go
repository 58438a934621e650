package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linkup-social/chat-platform/internal/config"
	"github.com/linkup-social/chat-platform/internal/handler"
	"github.com/linkup-social/chat-platform/internal/middleware"
	"github.com/linkup-social/chat-platform/pkg/logger"
)

// routes holds everything the router dispatches to.
type routes struct {
	cfg     *config.Config
	log     *logger.Logger
	auth    middleware.Authenticator
	health  *handler.HealthHandler
	chats   *handler.ChatHandler
	groups  *handler.GroupHandler
	streams *handler.StreamHandler
	gateway http.Handler
}

func newRouter(rt *routes) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", rt.health.Health)
	r.Get("/ready", rt.health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket gateway authenticates the handshake itself.
	r.With(middleware.RateLimit(rt.cfg.RateLimitRequests, rt.cfg.RateLimitWindow)).
		Get("/ws", rt.gateway.ServeHTTP)

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(rt.auth))
		r.Use(middleware.UserRateLimit(rt.cfg.RateLimitRequests, rt.cfg.RateLimitWindow))

		// Direct chats, keyed by the other user's ID, and history by conversation ID
		r.Route("/chats/{id}", func(r chi.Router) {
			r.Get("/", rt.chats.Open)
			r.Get("/messages", rt.chats.Messages)
			r.Get("/stream", rt.streams.Stream)
		})

		// Groups
		r.Route("/groups", func(r chi.Router) {
			r.Post("/", rt.groups.Create)
			r.Get("/", rt.groups.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.groups.Get)
				r.Patch("/name", rt.groups.Rename)
				r.Post("/members", rt.groups.AddMember)
				r.Delete("/members/{userId}", rt.groups.RemoveMember)
			})
		})
	})

	return r
}
