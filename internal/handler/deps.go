package handler

import (
	"quichat/internal/app/chat"
	"quichat/internal/app/feed"
	"quichat/internal/configs"
)

// AppDeps carries everything the admin API needs.
type AppDeps struct {
	Config *configs.AppConfig
	Server *chat.Server
	Feed   *feed.Hub
}
