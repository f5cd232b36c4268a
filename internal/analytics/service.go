// Package analytics records per-day server activity and aggregates it into
// the reports the panel dashboard consumes.
package analytics

import (
	"context"
	"sort"
	"time"

	"guildpanel/internal/bridge"
	"guildpanel/internal/storage"

	"go.uber.org/zap"
)

const (
	DefaultReportDays = 30
	topEntries        = 10
)

type Service struct {
	store  *storage.Store
	bridge bridge.Bridge
	logger *zap.Logger
}

func New(store *storage.Store, guildBridge bridge.Bridge, logger *zap.Logger) *Service {
	return &Service{store: store, bridge: guildBridge, logger: logger}
}

// RecordMessage folds one gateway message event into today's counters.
func (s *Service) RecordMessage(ctx context.Context, serverID, channelID, userID string) error {
	return s.store.RecordMessage(ctx, serverID, storage.Day(time.Now()), channelID, userID)
}

// SnapshotMemberCounts stamps today's member count for every guild the
// session can see. Called once a day and on startup.
func (s *Service) SnapshotMemberCounts(ctx context.Context, guildIDs []string) {
	date := storage.Day(time.Now())
	for _, guildID := range guildIDs {
		guild, err := s.bridge.FetchGuild(ctx, guildID)
		if err != nil {
			s.logger.Warn("member snapshot fetch failed", zap.String("server_id", guildID), zap.Error(err))
			continue
		}
		if err := s.store.SetMemberCount(ctx, guildID, date, guild.MemberCount); err != nil {
			s.logger.Warn("member snapshot write failed", zap.String("server_id", guildID), zap.Error(err))
		}
	}
}

// RunSnapshots snapshots member counts daily until the context is cancelled.
func (s *Service) RunSnapshots(ctx context.Context, guildIDs func() []string) {
	s.SnapshotMemberCounts(ctx, guildIDs())
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SnapshotMemberCounts(ctx, guildIDs())
		}
	}
}

type CurrentStats struct {
	MemberCount  int `json:"memberCount"`
	ChannelCount int `json:"channelCount"`
	RoleCount    int `json:"roleCount"`
}

type MembersReport struct {
	Analytics    []storage.DailyAnalytics `json:"analytics"`
	CurrentStats CurrentStats             `json:"currentStats"`
	Growth       int                      `json:"growth"`
}

type ChannelCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type MessagesReport struct {
	Analytics     []storage.DailyAnalytics `json:"analytics"`
	TopChannels   []ChannelCount           `json:"topChannels"`
	TotalMessages int                      `json:"totalMessages"`
}

type ActiveUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	AvatarURL  string `json:"avatar,omitempty"`
	ActiveDays int    `json:"activeDays"`
}

type ActivityReport struct {
	Analytics   []storage.DailyAnalytics `json:"analytics"`
	TopUsers    []ActiveUser             `json:"topUsers"`
	TotalJoins  int                      `json:"totalJoins"`
	TotalLeaves int                      `json:"totalLeaves"`
	NetGrowth   int                      `json:"netGrowth"`
}

type Comparison struct {
	Messages int `json:"messages"`
	Members  int `json:"members"`
}

type Summary struct {
	ServerName          string     `json:"serverName"`
	ServerIcon          string     `json:"serverIcon,omitempty"`
	MemberCount         int        `json:"memberCount"`
	ChannelCount        int        `json:"channelCount"`
	RoleCount           int        `json:"roleCount"`
	TodayMessages       int        `json:"todayMessages"`
	TodayJoins          int        `json:"todayJoins"`
	TodayLeaves         int        `json:"todayLeaves"`
	YesterdayComparison Comparison `json:"yesterdayComparison"`
}

func (s *Service) Members(ctx context.Context, serverID string, days int) (MembersReport, error) {
	rows, err := s.rowsSince(ctx, serverID, days)
	if err != nil {
		return MembersReport{}, err
	}
	guild, err := s.bridge.FetchGuild(ctx, serverID)
	if err != nil {
		return MembersReport{}, err
	}

	growth := 0
	if len(rows) > 0 {
		growth = guild.MemberCount - rows[0].MemberCount
	}
	return MembersReport{
		Analytics: rows,
		CurrentStats: CurrentStats{
			MemberCount:  guild.MemberCount,
			ChannelCount: guild.ChannelCount,
			RoleCount:    guild.RoleCount,
		},
		Growth: growth,
	}, nil
}

func (s *Service) Messages(ctx context.Context, serverID string, days int) (MessagesReport, error) {
	rows, err := s.rowsSince(ctx, serverID, days)
	if err != nil {
		return MessagesReport{}, err
	}

	counts := map[string]int{}
	total := 0
	for _, day := range rows {
		total += day.MessagesCount
		for channelID, count := range day.TopChannels {
			counts[channelID] += count
		}
	}

	names := map[string]string{}
	if channels, err := s.bridge.FetchChannels(ctx, serverID); err == nil {
		for _, channel := range channels {
			names[channel.ID] = channel.Name
		}
	}

	top := make([]ChannelCount, 0, len(counts))
	for channelID, count := range counts {
		name := names[channelID]
		if name == "" {
			name = "Unknown Channel"
		}
		top = append(top, ChannelCount{ID: channelID, Name: name, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > topEntries {
		top = top[:topEntries]
	}

	return MessagesReport{Analytics: rows, TopChannels: top, TotalMessages: total}, nil
}

func (s *Service) Activity(ctx context.Context, serverID string, days int) (ActivityReport, error) {
	rows, err := s.rowsSince(ctx, serverID, days)
	if err != nil {
		return ActivityReport{}, err
	}

	activeDays := map[string]int{}
	totalJoins, totalLeaves := 0, 0
	for _, day := range rows {
		totalJoins += day.JoinCount
		totalLeaves += day.LeaveCount
		for _, userID := range day.ActiveUsers {
			activeDays[userID]++
		}
	}

	profiles := map[string]bridge.Member{}
	if members, err := s.bridge.FetchMembers(ctx, serverID); err == nil {
		for _, member := range members {
			profiles[member.ID] = member
		}
	}

	top := make([]ActiveUser, 0, len(activeDays))
	for userID, count := range activeDays {
		user := ActiveUser{ID: userID, Username: "Unknown User", ActiveDays: count}
		if member, ok := profiles[userID]; ok {
			user.Username = member.Username
			user.AvatarURL = member.AvatarURL
		}
		top = append(top, user)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].ActiveDays != top[j].ActiveDays {
			return top[i].ActiveDays > top[j].ActiveDays
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > topEntries {
		top = top[:topEntries]
	}

	return ActivityReport{
		Analytics:   rows,
		TopUsers:    top,
		TotalJoins:  totalJoins,
		TotalLeaves: totalLeaves,
		NetGrowth:   totalJoins - totalLeaves,
	}, nil
}

func (s *Service) Summarize(ctx context.Context, serverID string) (Summary, error) {
	guild, err := s.bridge.FetchGuild(ctx, serverID)
	if err != nil {
		return Summary{}, err
	}

	now := time.Now()
	today, _, err := s.store.GetDailyAnalytics(ctx, serverID, storage.Day(now))
	if err != nil {
		return Summary{}, err
	}
	yesterday, foundYesterday, err := s.store.GetDailyAnalytics(ctx, serverID, storage.Day(now.AddDate(0, 0, -1)))
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		ServerName:    guild.Name,
		ServerIcon:    guild.IconURL,
		MemberCount:   guild.MemberCount,
		ChannelCount:  guild.ChannelCount,
		RoleCount:     guild.RoleCount,
		TodayMessages: today.MessagesCount,
		TodayJoins:    today.JoinCount,
		TodayLeaves:   today.LeaveCount,
	}
	if foundYesterday {
		summary.YesterdayComparison = Comparison{
			Messages: today.MessagesCount - yesterday.MessagesCount,
			Members:  guild.MemberCount - yesterday.MemberCount,
		}
	}
	return summary, nil
}

func (s *Service) rowsSince(ctx context.Context, serverID string, days int) ([]storage.DailyAnalytics, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	since := storage.Day(time.Now().AddDate(0, 0, -days))
	return s.store.ListAnalyticsSince(ctx, serverID, since)
}
