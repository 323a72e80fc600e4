/*
Package handler provides the admin HTTP handlers and routing setup for the chat server.

This file contains HandleFeed, which rate limits, upgrades the HTTP connection
to WebSocket and attaches it to the observer feed.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"quichat/internal/pkg/errs"
	"quichat/internal/pkg/limiter"
	"quichat/internal/pkg/logx"
	"quichat/internal/pkg/resp"
)

// HandleFeed creates an HTTP HandlerFunc that streams chat traffic to a
// read-only WebSocket observer.
func HandleFeed(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Feed == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrServerShuttingDown))
			return
		}

		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("Feed connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		deps.Feed.Serve(conn, logx.AnonymizeIP(ip))
	}
}
