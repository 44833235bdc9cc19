package handler

import (
	"context"

	"xalvion/internal/app/engine"
	"xalvion/internal/app/gateway"
	"xalvion/internal/app/model"
	"xalvion/internal/app/session"
	"xalvion/internal/configs"
	"xalvion/internal/pkg/metrics"
)

// Engine is the part of the sync engine the bridge drives.
type Engine interface {
	Snapshot() engine.View
	Subscribe() (<-chan engine.View, func())

	Login(ctx context.Context, username, password string) (model.Identity, error)
	Register(ctx context.Context, in gateway.RegisterInput) (model.Identity, error)
	Logout(ctx context.Context) error

	SelectServer(ctx context.Context, serverID string) error
	SelectChannel(ctx context.Context, channelID string) error
	CreateServer(ctx context.Context, name, description string) (*model.Server, error)
	CreateChannel(ctx context.Context, name string, channelType model.ChannelType, description string) (*model.Channel, error)

	SendMessage(ctx context.Context, content string) (*model.Message, error)
	InputChanged(ctx context.Context) error
	InputBlurred(ctx context.Context) error
	AddReaction(ctx context.Context, messageID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, emoji string) error

	SetPreferences(ctx context.Context, p session.Preferences) error
}

type AppDeps struct {
	Engine  Engine
	Config  *configs.AppConfig
	Metrics *metrics.Metrics
}
