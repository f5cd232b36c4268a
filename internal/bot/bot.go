// Package bot owns the gateway session and turns raw Discord events into
// calls on the greeter and analytics services.
package bot

import (
	"context"

	"guildpanel/internal/analytics"
	"guildpanel/internal/config"
	"guildpanel/internal/greeter"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Event is a gateway occurrence mirrored to the live feed.
type Event struct {
	Type     string `json:"type"`
	ServerID string `json:"serverId"`
	UserID   string `json:"userId,omitempty"`
	UserTag  string `json:"userTag,omitempty"`
}

// Publisher fans events out to live feed subscribers.
type Publisher interface {
	Publish(event Event)
}

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	session   *discordgo.Session
	greeter   *greeter.Greeter
	analytics *analytics.Service
	publisher Publisher
}

func New(cfg config.Config, logger *zap.Logger, session *discordgo.Session, greeterService *greeter.Greeter, analyticsService *analytics.Service, publisher Publisher) *Bot {
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages

	return &Bot{
		cfg:       cfg,
		logger:    logger,
		session:   session,
		greeter:   greeterService,
		analytics: analyticsService,
		publisher: publisher,
	}
}

func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// GuildIDs lists the guilds currently in the session state cache.
func (b *Bot) GuildIDs() []string {
	state := b.session.State
	state.RLock()
	defer state.RUnlock()

	ids := make([]string, 0, len(state.Guilds))
	for _, guild := range state.Guilds {
		ids = append(ids, guild.ID)
	}
	return ids
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.dispatchMemberAdd)
	b.session.AddHandler(b.dispatchMemberRemove)
	b.session.AddHandler(b.dispatchMessageCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	b.logger.Info("gateway session opened")
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		if err := b.session.Close(); err != nil {
			b.logger.Warn("gateway close failed", zap.Error(err))
		}
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

func (b *Bot) publish(event Event) {
	if b.publisher != nil {
		b.publisher.Publish(event)
	}
}
