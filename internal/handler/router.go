/*
Package handler provides the admin HTTP handlers and routing setup for the chat server.

This file defines the main Router, applying middleware like logging, CORS and
IP-based rate limiting before delegating requests to the API and WebSocket
feed handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"quichat/internal/pkg/limiter"
	"quichat/internal/pkg/logx"
	"quichat/internal/pkg/resp"
)

const (
	AnnounceRate  = 0.2
	AnnounceBurst = 3
	FeedRate      = 0.5
	FeedBurst     = 5
)

// Router sets up the admin routing table. The rate limiters' cleanup loops
// stop when ctx is cancelled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	announceLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AnnounceRate), AnnounceBurst)
	feedLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(FeedRate), FeedBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	r.Route("/api", func(api chi.Router) {
		api.Get("/peers", HandleListPeers(deps))
		api.Get("/history", HandleHistory(deps))
		api.With(announceLimiter.Middleware).Post("/announce", HandleAnnounce(deps))
	})

	r.Get("/ws/feed", HandleFeed(wsUpgrader, feedLimiter, deps))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.RespondJSON(w, r, http.StatusNotFound, resp.JSONResponse{Code: http.StatusNotFound, Message: "not found"})
	})

	return r
}
