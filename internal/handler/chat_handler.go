/*
Package handler provides the admin HTTP handlers and routing setup for the chat server.

This file exposes read access to the live chat state and lets an operator
announce a server message to every logged-in peer.
*/
package handler

import (
	"context"
	"net/http"
	"strings"

	"quichat/internal/pkg/errs"
	"quichat/internal/pkg/logx"
	"quichat/internal/pkg/req"
	"quichat/internal/pkg/resp"
)

// HandleHealth reports liveness and the current load.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":      "ok",
			"service":     "quichat",
			"connections": deps.Server.ActiveConnections(),
			"peers":       deps.Server.Store().Len(),
		}
		if deps.Feed != nil {
			data["observers"] = deps.Feed.Len()
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleListPeers returns the logged-in users in login order.
func HandleListPeers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"peers": deps.Server.Store().Users(),
		})
	}
}

// HandleHistory returns the recorded chat history, oldest first.
func HandleHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"messages": deps.Server.Store().History(),
		})
	}
}

type AnnounceInput struct {
	// Text is published as a message without a sender.
	Text string `json:"text"`
}

// HandleAnnounce records a server message in the history and pushes it to
// every logged-in peer.
func HandleAnnounce(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input AnnounceInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		text := strings.TrimSpace(input.Text)
		if text == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentEmpty))
			return
		}
		if len(text) > deps.Config.MaxMessageBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong, deps.Config.MaxMessageBytes))
			return
		}

		delivered := deps.Server.Broadcaster().Announce(context.WithoutCancel(r.Context()), text)
		logx.Info("Announcement published", "delivered", delivered)

		resp.RespondSuccess(w, r, map[string]any{
			"delivered": delivered,
		})
	}
}
