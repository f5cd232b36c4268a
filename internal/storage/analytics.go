package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// DailyAnalytics is one server's counters for one calendar day.
type DailyAnalytics struct {
	ServerID      string         `json:"serverId"`
	Date          string         `json:"date"`
	MemberCount   int            `json:"memberCount"`
	MessagesCount int            `json:"messagesCount"`
	JoinCount     int            `json:"joinCount"`
	LeaveCount    int            `json:"leaveCount"`
	ActiveUsers   []string       `json:"activeUsers"`
	TopChannels   map[string]int `json:"topChannels"`
}

// Day formats a timestamp as the analytics date key.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (s *Store) IncrementJoin(ctx context.Context, serverID, date string) error {
	return s.incrementCounter(ctx, serverID, date, "join_count")
}

func (s *Store) IncrementLeave(ctx context.Context, serverID, date string) error {
	return s.incrementCounter(ctx, serverID, date, "leave_count")
}

func (s *Store) incrementCounter(ctx context.Context, serverID, date, column string) error {
	// column is one of two fixed identifiers; values go through placeholders.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_analytics (server_id, date, `+column+`)
		VALUES (?, ?, 1)
		ON CONFLICT(server_id, date) DO UPDATE SET `+column+` = `+column+` + 1
	`, serverID, date)
	return err
}

// RecordMessage bumps the day's message counter and folds the author and
// channel into the activity JSON columns. The read-modify-write on the JSON
// columns is last-write-wins; a lost message in the activity sets under
// concurrent events is acceptable.
func (s *Store) RecordMessage(ctx context.Context, serverID, date, channelID, userID string) error {
	day, found, err := s.GetDailyAnalytics(ctx, serverID, date)
	if err != nil {
		return err
	}
	if !found {
		day = DailyAnalytics{ServerID: serverID, Date: date}
	}
	if day.TopChannels == nil {
		day.TopChannels = map[string]int{}
	}
	day.TopChannels[channelID]++
	if !containsString(day.ActiveUsers, userID) {
		day.ActiveUsers = append(day.ActiveUsers, userID)
	}

	activeJSON, err := json.Marshal(day.ActiveUsers)
	if err != nil {
		return err
	}
	channelsJSON, err := json.Marshal(day.TopChannels)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO server_analytics (server_id, date, messages_count, active_users, top_channels)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(server_id, date) DO UPDATE SET
			messages_count = messages_count + 1,
			active_users = excluded.active_users,
			top_channels = excluded.top_channels
	`, serverID, date, string(activeJSON), string(channelsJSON))
	return err
}

// SetMemberCount snapshots the day's member count.
func (s *Store) SetMemberCount(ctx context.Context, serverID, date string, count int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_analytics (server_id, date, member_count)
		VALUES (?, ?, ?)
		ON CONFLICT(server_id, date) DO UPDATE SET member_count = excluded.member_count
	`, serverID, date, count)
	return err
}

func (s *Store) GetDailyAnalytics(ctx context.Context, serverID, date string) (DailyAnalytics, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT server_id, date, member_count, messages_count, join_count, leave_count, active_users, top_channels
		FROM server_analytics WHERE server_id = ? AND date = ?`, serverID, date)

	day, err := scanDailyAnalytics(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DailyAnalytics{}, false, nil
		}
		return DailyAnalytics{}, false, err
	}
	return day, true, nil
}

// ListAnalyticsSince returns rows on or after the given date, oldest first.
func (s *Store) ListAnalyticsSince(ctx context.Context, serverID, since string) ([]DailyAnalytics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT server_id, date, member_count, messages_count, join_count, leave_count, active_users, top_channels
		FROM server_analytics WHERE server_id = ? AND date >= ?
		ORDER BY date ASC`, serverID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := []DailyAnalytics{}
	for rows.Next() {
		day, err := scanDailyAnalytics(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

func scanDailyAnalytics(row rowScanner) (DailyAnalytics, error) {
	var day DailyAnalytics
	var activeJSON, channelsJSON string
	err := row.Scan(
		&day.ServerID,
		&day.Date,
		&day.MemberCount,
		&day.MessagesCount,
		&day.JoinCount,
		&day.LeaveCount,
		&activeJSON,
		&channelsJSON,
	)
	if err != nil {
		return DailyAnalytics{}, err
	}
	if err := json.Unmarshal([]byte(activeJSON), &day.ActiveUsers); err != nil {
		return DailyAnalytics{}, err
	}
	if err := json.Unmarshal([]byte(channelsJSON), &day.TopChannels); err != nil {
		return DailyAnalytics{}, err
	}
	return day, nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
