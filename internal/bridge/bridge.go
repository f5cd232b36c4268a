// Package bridge wraps the live gateway client behind a small interface so
// the panel reads and writes guild state without touching discordgo types.
package bridge

import (
	"context"

	"guildpanel/internal/render"
)

type Guild struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IconURL      string `json:"icon"`
	OwnerID      string `json:"ownerID"`
	MemberCount  int    `json:"memberCount"`
	ChannelCount int    `json:"channelCount"`
	RoleCount    int    `json:"roleCount"`
}

type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	Position int    `json:"position"`
}

type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
}

type Member struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Discriminator string   `json:"discriminator"`
	AvatarURL     string   `json:"avatarURL"`
	Bot           bool     `json:"bot"`
	Roles         []string `json:"roles"`
}

// Payload is a rendered message ready to post: plain content, an embed, or
// both. FallbackColor is the hex color used when the embed carries none.
type Payload struct {
	Content       string
	Embed         *render.Embed
	FallbackColor string
}

func PayloadFrom(content render.MessageContent, fallbackColor string) Payload {
	return Payload{Content: content.Message, Embed: content.Embed, FallbackColor: fallbackColor}
}

// Bridge is the guild data bridge. All calls are remote and may fail with
// apperr.NotFound or apperr.Upstream.
type Bridge interface {
	FetchGuild(ctx context.Context, guildID string) (Guild, error)
	FetchChannel(ctx context.Context, guildID, channelID string) (Channel, error)
	FetchChannels(ctx context.Context, guildID string) ([]Channel, error)
	FetchRoles(ctx context.Context, guildID string) ([]Role, error)
	FetchMembers(ctx context.Context, guildID string) ([]Member, error)
	SendToChannel(ctx context.Context, channelID string, payload Payload) error
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	SendDirectMessage(ctx context.Context, userID, text string) error
	CreateRole(ctx context.Context, guildID, name string, color int) (Role, error)
	CreateChannel(ctx context.Context, guildID, name string, channelType int) (Channel, error)
	DeleteChannel(ctx context.Context, guildID, channelID string) error
}
