// Package templates posts saved message templates to guild channels,
// rendering server tokens and tracking usage.
package templates

import (
	"context"
	"time"

	"guildpanel/internal/apperr"
	"guildpanel/internal/bridge"
	"guildpanel/internal/render"
	"guildpanel/internal/storage"

	"go.uber.org/zap"
)

const templateColor = "#000000"

type Service struct {
	store  *storage.Store
	bridge bridge.Bridge
	logger *zap.Logger
}

func New(store *storage.Store, guildBridge bridge.Bridge, logger *zap.Logger) *Service {
	return &Service{store: store, bridge: guildBridge, logger: logger}
}

// Use renders a stored template against the server's live state, posts it to
// the channel, and bumps the usage counter. The counter is only touched after
// a successful send.
func (s *Service) Use(ctx context.Context, serverID, templateID, channelID string) (storage.MessageTemplate, error) {
	if channelID == "" {
		return storage.MessageTemplate{}, apperr.Validation("channelId is required")
	}

	template, found, err := s.store.GetTemplate(ctx, serverID, templateID)
	if err != nil {
		return storage.MessageTemplate{}, apperr.Persistence("failed to load template", err)
	}
	if !found {
		return storage.MessageTemplate{}, apperr.NotFound("template not found")
	}

	guild, err := s.bridge.FetchGuild(ctx, serverID)
	if err != nil {
		return storage.MessageTemplate{}, err
	}
	if _, err := s.bridge.FetchChannel(ctx, serverID, channelID); err != nil {
		return storage.MessageTemplate{}, err
	}

	vars := render.TemplateVars(guild.Name, guild.IconURL, guild.MemberCount)
	rendered := render.Render(template.Content, vars)
	if err := s.bridge.SendToChannel(ctx, channelID, bridge.PayloadFrom(rendered, templateColor)); err != nil {
		return storage.MessageTemplate{}, err
	}

	if err := s.store.MarkTemplateUsed(ctx, serverID, templateID, time.Now()); err != nil {
		s.logger.Warn("template usage update failed",
			zap.String("server_id", serverID),
			zap.String("template_id", templateID),
			zap.Error(err))
	}
	s.logger.Info("template used",
		zap.String("server_id", serverID),
		zap.String("template_id", templateID),
		zap.String("channel_id", channelID))

	template.UsageCount++
	now := time.Now()
	template.LastUsed = &now
	return template, nil
}
