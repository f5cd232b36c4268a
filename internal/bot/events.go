package bot

import (
	"context"
	"time"

	"guildpanel/internal/greeter"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const handlerTimeout = 30 * time.Second

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("gateway ready",
		zap.String("user", r.User.String()),
		zap.Int("guilds", len(r.Guilds)))
}

// Dispatch wrappers bound to discordgo's void handler signatures. The real
// handlers return errors so failures surface in one place instead of being
// silently dropped inside each handler.
func (b *Bot) dispatchMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	b.dispatch("member add", func(ctx context.Context) error {
		return b.handleMemberAdd(ctx, m)
	})
}

func (b *Bot) dispatchMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	b.dispatch("member remove", func(ctx context.Context) error {
		return b.handleMemberRemove(ctx, m)
	})
}

func (b *Bot) dispatchMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	b.dispatch("message create", func(ctx context.Context) error {
		return b.handleMessageCreate(ctx, m)
	})
}

func (b *Bot) dispatch(name string, handle func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := handle(ctx); err != nil {
		b.logger.Error("event handler failed", zap.String("event", name), zap.Error(err))
	}
}

func (b *Bot) handleMemberAdd(ctx context.Context, m *discordgo.GuildMemberAdd) error {
	if m.User == nil || m.User.Bot {
		return nil
	}
	event := b.memberEvent(m.GuildID, m.User)
	b.publish(Event{Type: "member_join", ServerID: m.GuildID, UserID: m.User.ID, UserTag: m.User.String()})
	return b.greeter.HandleJoin(ctx, event)
}

func (b *Bot) handleMemberRemove(ctx context.Context, m *discordgo.GuildMemberRemove) error {
	if m.User == nil || m.User.Bot {
		return nil
	}
	event := b.memberEvent(m.GuildID, m.User)
	b.publish(Event{Type: "member_leave", ServerID: m.GuildID, UserID: m.User.ID, UserTag: m.User.String()})
	return b.greeter.HandleLeave(ctx, event)
}

func (b *Bot) handleMessageCreate(ctx context.Context, m *discordgo.MessageCreate) error {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return nil
	}
	b.publish(Event{Type: "message", ServerID: m.GuildID, UserID: m.Author.ID})
	return b.analytics.RecordMessage(ctx, m.GuildID, m.ChannelID, m.Author.ID)
}

func (b *Bot) memberEvent(guildID string, user *discordgo.User) greeter.MemberEvent {
	event := greeter.MemberEvent{
		ServerID:  guildID,
		UserID:    user.ID,
		UserTag:   user.String(),
		AvatarURL: user.AvatarURL(""),
	}
	if guild, err := b.session.State.Guild(guildID); err == nil {
		event.ServerName = guild.Name
		event.MemberCount = guild.MemberCount
	}
	return event
}
