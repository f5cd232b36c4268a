// Package greeter reacts to member join/leave events: analytics counters,
// auto-role, welcome/goodbye channel messages, and welcome DMs.
package greeter

import (
	"context"
	"time"

	"guildpanel/internal/bridge"
	"guildpanel/internal/render"
	"guildpanel/internal/storage"

	"go.uber.org/zap"
)

const (
	welcomeColor = "#00ff00"
	goodbyeColor = "#ff0000"
)

var nowFunc = time.Now

// MemberEvent carries the gateway facts a join/leave pipeline needs.
type MemberEvent struct {
	ServerID    string
	ServerName  string
	MemberCount int
	UserID      string
	UserTag     string
	AvatarURL   string
}

type Greeter struct {
	store  *storage.Store
	bridge bridge.Bridge
	logger *zap.Logger
}

func New(store *storage.Store, guildBridge bridge.Bridge, logger *zap.Logger) *Greeter {
	return &Greeter{store: store, bridge: guildBridge, logger: logger}
}

// HandleJoin runs the join pipeline. Each side effect is independent: a
// failed auto-role or DM never blocks the welcome message, and analytics are
// recorded even when no settings exist.
func (g *Greeter) HandleJoin(ctx context.Context, event MemberEvent) error {
	if err := g.store.IncrementJoin(ctx, event.ServerID, storage.Day(nowFunc())); err != nil {
		g.logger.Warn("join analytics update failed",
			zap.String("server_id", event.ServerID), zap.Error(err))
	}

	settings, found, err := g.store.GetWelcomeSettings(ctx, event.ServerID)
	if err != nil {
		return err
	}
	if !found {
		g.logger.Info("no welcome settings for server", zap.String("server_id", event.ServerID))
		return nil
	}

	if settings.AutoRoleID != "" {
		if err := g.bridge.AddRole(ctx, event.ServerID, event.UserID, settings.AutoRoleID); err != nil {
			g.logger.Warn("auto-role failed",
				zap.String("server_id", event.ServerID),
				zap.String("user_tag", event.UserTag),
				zap.String("role_id", settings.AutoRoleID),
				zap.Error(err))
		} else {
			g.logger.Info("auto-role added",
				zap.String("server_id", event.ServerID),
				zap.String("user_tag", event.UserTag))
		}
	}

	if settings.WelcomeEnabled && settings.WelcomeChannelID != "" && !settings.WelcomeMessage.Empty() {
		rendered := render.Render(settings.WelcomeMessage, g.joinVars(event))
		if err := g.bridge.SendToChannel(ctx, settings.WelcomeChannelID, bridge.PayloadFrom(rendered, welcomeColor)); err != nil {
			g.logger.Warn("welcome message failed",
				zap.String("server_id", event.ServerID),
				zap.String("user_tag", event.UserTag),
				zap.Error(err))
		} else {
			g.logger.Info("welcome message sent",
				zap.String("server_id", event.ServerID),
				zap.String("user_tag", event.UserTag))
		}
	}

	if settings.DMNewMembers && settings.DMMessage != "" {
		text := render.RenderText(settings.DMMessage, g.dmVars(event))
		if err := g.bridge.SendDirectMessage(ctx, event.UserID, text); err != nil {
			g.logger.Warn("welcome DM failed",
				zap.String("server_id", event.ServerID),
				zap.String("user_tag", event.UserTag),
				zap.Error(err))
		} else {
			g.logger.Info("welcome DM sent",
				zap.String("server_id", event.ServerID),
				zap.String("user_tag", event.UserTag))
		}
	}

	return nil
}

// HandleLeave runs the leave pipeline: analytics always, goodbye message
// when enabled and configured.
func (g *Greeter) HandleLeave(ctx context.Context, event MemberEvent) error {
	if err := g.store.IncrementLeave(ctx, event.ServerID, storage.Day(nowFunc())); err != nil {
		g.logger.Warn("leave analytics update failed",
			zap.String("server_id", event.ServerID), zap.Error(err))
	}

	settings, found, err := g.store.GetWelcomeSettings(ctx, event.ServerID)
	if err != nil {
		return err
	}
	if !found || !settings.GoodbyeEnabled {
		return nil
	}

	if settings.GoodbyeChannelID != "" && !settings.GoodbyeMessage.Empty() {
		rendered := render.Render(settings.GoodbyeMessage, g.joinVars(event))
		if err := g.bridge.SendToChannel(ctx, settings.GoodbyeChannelID, bridge.PayloadFrom(rendered, goodbyeColor)); err != nil {
			g.logger.Warn("goodbye message failed",
				zap.String("server_id", event.ServerID),
				zap.String("user_tag", event.UserTag),
				zap.Error(err))
		} else {
			g.logger.Info("goodbye message sent",
				zap.String("server_id", event.ServerID),
				zap.String("user_tag", event.UserTag))
		}
	}

	return nil
}

func (g *Greeter) joinVars(event MemberEvent) []render.Replacement {
	return render.WelcomeVars(event.UserTag, "<@"+event.UserID+">", event.ServerName, event.MemberCount, event.AvatarURL)
}

// DM messages use the reduced plain-text token set.
func (g *Greeter) dmVars(event MemberEvent) []render.Replacement {
	return render.DMVars(event.UserTag, event.ServerName, event.MemberCount)
}
