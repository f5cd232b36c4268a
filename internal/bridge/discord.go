package bridge

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"guildpanel/internal/apperr"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const sendRetries = 3

// DiscordBridge implements Bridge over a discordgo session. The session's
// state caches are owned by discordgo; this type only issues commands and
// re-reads.
type DiscordBridge struct {
	session *discordgo.Session
	limiter *limiter
	logger  *zap.Logger
}

func NewDiscordBridge(session *discordgo.Session, logger *zap.Logger) *DiscordBridge {
	return &DiscordBridge{session: session, limiter: newLimiter(), logger: logger}
}

func (b *DiscordBridge) FetchGuild(ctx context.Context, guildID string) (Guild, error) {
	if err := b.limiter.wait(ctx, "guilds"); err != nil {
		return Guild{}, err
	}

	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		guild, err = b.session.Guild(guildID)
		if err != nil {
			return Guild{}, translate("guild not found", err)
		}
	}

	out := Guild{
		ID:           guild.ID,
		Name:         guild.Name,
		OwnerID:      guild.OwnerID,
		MemberCount:  guild.MemberCount,
		ChannelCount: len(guild.Channels),
		RoleCount:    len(guild.Roles),
	}
	if guild.Icon != "" {
		out.IconURL = guild.IconURL("")
	}
	return out, nil
}

func (b *DiscordBridge) FetchChannel(ctx context.Context, guildID, channelID string) (Channel, error) {
	if err := b.limiter.wait(ctx, "channels"); err != nil {
		return Channel{}, err
	}

	channel, err := b.session.State.Channel(channelID)
	if err != nil {
		channel, err = b.session.Channel(channelID)
		if err != nil {
			return Channel{}, translate("channel not found", err)
		}
	}
	if channel.GuildID != guildID {
		return Channel{}, apperr.NotFound("channel not found")
	}
	return toChannel(channel), nil
}

func (b *DiscordBridge) FetchChannels(ctx context.Context, guildID string) ([]Channel, error) {
	if err := b.limiter.wait(ctx, "channels"); err != nil {
		return nil, err
	}

	channels, err := b.session.GuildChannels(guildID)
	if err != nil {
		return nil, translate("failed to fetch channels", err)
	}
	out := make([]Channel, 0, len(channels))
	for _, channel := range channels {
		out = append(out, toChannel(channel))
	}
	return out, nil
}

func (b *DiscordBridge) FetchRoles(ctx context.Context, guildID string) ([]Role, error) {
	if err := b.limiter.wait(ctx, "roles"); err != nil {
		return nil, err
	}

	roles, err := b.session.GuildRoles(guildID)
	if err != nil {
		return nil, translate("failed to fetch roles", err)
	}
	out := make([]Role, 0, len(roles))
	for _, role := range roles {
		out = append(out, Role{ID: role.ID, Name: role.Name, Color: role.Color, Position: role.Position})
	}
	return out, nil
}

func (b *DiscordBridge) FetchMembers(ctx context.Context, guildID string) ([]Member, error) {
	if err := b.limiter.wait(ctx, "members"); err != nil {
		return nil, err
	}

	members, err := b.session.GuildMembers(guildID, "", 1000)
	if err != nil {
		return nil, translate("failed to fetch members", err)
	}
	out := make([]Member, 0, len(members))
	for _, member := range members {
		if member.User == nil {
			continue
		}
		out = append(out, Member{
			ID:            member.User.ID,
			Username:      member.User.Username,
			Discriminator: member.User.Discriminator,
			AvatarURL:     member.User.AvatarURL(""),
			Bot:           member.User.Bot,
			Roles:         member.Roles,
		})
	}
	return out, nil
}

func (b *DiscordBridge) SendToChannel(ctx context.Context, channelID string, payload Payload) error {
	if err := b.limiter.wait(ctx, "messages"); err != nil {
		return err
	}

	send := &discordgo.MessageSend{Content: payload.Content}
	if payload.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{payloadEmbed(payload)}
	}

	return b.withRetry(ctx, "channel send", func() error {
		_, err := b.session.ChannelMessageSendComplex(channelID, send)
		return err
	})
}

func (b *DiscordBridge) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := b.limiter.wait(ctx, "members"); err != nil {
		return err
	}
	if err := b.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return translate("failed to add role", err)
	}
	return nil
}

func (b *DiscordBridge) SendDirectMessage(ctx context.Context, userID, text string) error {
	if err := b.limiter.wait(ctx, "messages"); err != nil {
		return err
	}

	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return translate("failed to open DM channel", err)
	}
	return b.withRetry(ctx, "dm send", func() error {
		_, err := b.session.ChannelMessageSend(channel.ID, text)
		return err
	})
}

func (b *DiscordBridge) CreateRole(ctx context.Context, guildID, name string, color int) (Role, error) {
	if err := b.limiter.wait(ctx, "roles"); err != nil {
		return Role{}, err
	}

	role, err := b.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name, Color: &color})
	if err != nil {
		return Role{}, translate("failed to create role", err)
	}
	return Role{ID: role.ID, Name: role.Name, Color: role.Color, Position: role.Position}, nil
}

func (b *DiscordBridge) CreateChannel(ctx context.Context, guildID, name string, channelType int) (Channel, error) {
	if err := b.limiter.wait(ctx, "channels"); err != nil {
		return Channel{}, err
	}

	channel, err := b.session.GuildChannelCreate(guildID, name, discordgo.ChannelType(channelType))
	if err != nil {
		return Channel{}, translate("failed to create channel", err)
	}
	return toChannel(channel), nil
}

func (b *DiscordBridge) DeleteChannel(ctx context.Context, guildID, channelID string) error {
	if _, err := b.FetchChannel(ctx, guildID, channelID); err != nil {
		return err
	}
	if _, err := b.session.ChannelDelete(channelID); err != nil {
		return translate("failed to delete channel", err)
	}
	return nil
}

// withRetry re-attempts a call when Discord answers 429, honoring the
// advertised retry delay.
func (b *DiscordBridge) withRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 0; attempt < sendRetries; attempt++ {
		err = call()
		if err == nil {
			return nil
		}

		var rateErr *discordgo.RateLimitError
		if !errors.As(err, &rateErr) {
			return translate(op+" failed", err)
		}

		delay := rateErr.RetryAfter
		if delay <= 0 {
			delay = time.Second << attempt
		}
		b.logger.Warn("rate limited, retrying", zap.String("op", op), zap.Duration("retry_after", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return translate(op+" failed after retries", err)
}

func toChannel(channel *discordgo.Channel) Channel {
	return Channel{
		ID:       channel.ID,
		Name:     channel.Name,
		Type:     int(channel.Type),
		Position: channel.Position,
	}
}

func payloadEmbed(payload Payload) *discordgo.MessageEmbed {
	color := payload.Embed.Color
	if color == "" {
		color = payload.FallbackColor
	}
	embed := &discordgo.MessageEmbed{
		Title:       payload.Embed.Title,
		Description: payload.Embed.Description,
		Color:       parseHexColor(color),
	}
	if payload.Embed.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: payload.Embed.Footer}
	}
	if payload.Embed.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: payload.Embed.Thumbnail}
	}
	return embed
}

func parseHexColor(value string) int {
	value = strings.TrimPrefix(value, "#")
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 16, 32)
	if err != nil {
		return 0
	}
	return int(parsed)
}

// translate maps a discordgo REST failure onto the panel error taxonomy.
func translate(message string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return apperr.NotFound(message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Upstream(message, err)
		}
	}
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return apperr.NotFound(message)
	}
	return apperr.Upstream(message, err)
}
