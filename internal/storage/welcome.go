package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"guildpanel/internal/render"
)

// WelcomeSettings holds the per-server join/leave automation record. One row
// per server, created lazily with defaults on first read.
type WelcomeSettings struct {
	ServerID         string                `json:"serverId"`
	WelcomeEnabled   bool                  `json:"welcomeEnabled"`
	WelcomeChannelID string                `json:"welcomeChannelId"`
	WelcomeMessage   render.MessageContent `json:"welcomeMessage"`
	GoodbyeEnabled   bool                  `json:"goodbyeEnabled"`
	GoodbyeChannelID string                `json:"goodbyeChannelId"`
	GoodbyeMessage   render.MessageContent `json:"goodbyeMessage"`
	DMNewMembers     bool                  `json:"dmNewMembers"`
	DMMessage        string                `json:"dmMessage"`
	AutoRoleID       string                `json:"autoRoleId"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// GetWelcomeSettings returns the row for the server, or sql.ErrNoRows wrapped
// callers never see: found reports whether a row existed.
func (s *Store) GetWelcomeSettings(ctx context.Context, serverID string) (WelcomeSettings, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT welcome_enabled, welcome_channel_id, welcome_message,
		goodbye_enabled, goodbye_channel_id, goodbye_message,
		dm_new_members, dm_message, auto_role_id, updated_at
		FROM welcome_settings WHERE server_id = ?`, serverID)

	settings := WelcomeSettings{ServerID: serverID}
	var welcomeEnabled, goodbyeEnabled, dmNewMembers int
	var welcomeJSON, goodbyeJSON string
	var updated int64
	err := row.Scan(
		&welcomeEnabled,
		&settings.WelcomeChannelID,
		&welcomeJSON,
		&goodbyeEnabled,
		&settings.GoodbyeChannelID,
		&goodbyeJSON,
		&dmNewMembers,
		&settings.DMMessage,
		&settings.AutoRoleID,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WelcomeSettings{ServerID: serverID}, false, nil
		}
		return WelcomeSettings{}, false, err
	}

	settings.WelcomeEnabled = welcomeEnabled == 1
	settings.GoodbyeEnabled = goodbyeEnabled == 1
	settings.DMNewMembers = dmNewMembers == 1
	settings.UpdatedAt = time.Unix(updated, 0)
	if err := unmarshalContent(welcomeJSON, &settings.WelcomeMessage); err != nil {
		return WelcomeSettings{}, false, err
	}
	if err := unmarshalContent(goodbyeJSON, &settings.GoodbyeMessage); err != nil {
		return WelcomeSettings{}, false, err
	}
	return settings, true, nil
}

// EnsureWelcomeSettings returns the row for the server, creating a disabled
// default record when none exists.
func (s *Store) EnsureWelcomeSettings(ctx context.Context, serverID string) (WelcomeSettings, error) {
	settings, found, err := s.GetWelcomeSettings(ctx, serverID)
	if err != nil {
		return WelcomeSettings{}, err
	}
	if found {
		return settings, nil
	}

	settings = WelcomeSettings{ServerID: serverID, UpdatedAt: time.Now()}
	if err := s.UpsertWelcomeSettings(ctx, settings); err != nil {
		return WelcomeSettings{}, err
	}
	return settings, nil
}

func (s *Store) UpsertWelcomeSettings(ctx context.Context, settings WelcomeSettings) error {
	welcomeJSON, err := marshalContent(settings.WelcomeMessage)
	if err != nil {
		return err
	}
	goodbyeJSON, err := marshalContent(settings.GoodbyeMessage)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO welcome_settings (
			server_id, welcome_enabled, welcome_channel_id, welcome_message,
			goodbye_enabled, goodbye_channel_id, goodbye_message,
			dm_new_members, dm_message, auto_role_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			welcome_enabled = excluded.welcome_enabled,
			welcome_channel_id = excluded.welcome_channel_id,
			welcome_message = excluded.welcome_message,
			goodbye_enabled = excluded.goodbye_enabled,
			goodbye_channel_id = excluded.goodbye_channel_id,
			goodbye_message = excluded.goodbye_message,
			dm_new_members = excluded.dm_new_members,
			dm_message = excluded.dm_message,
			auto_role_id = excluded.auto_role_id,
			updated_at = excluded.updated_at
	`,
		settings.ServerID,
		boolToInt(settings.WelcomeEnabled),
		settings.WelcomeChannelID,
		welcomeJSON,
		boolToInt(settings.GoodbyeEnabled),
		settings.GoodbyeChannelID,
		goodbyeJSON,
		boolToInt(settings.DMNewMembers),
		settings.DMMessage,
		settings.AutoRoleID,
		time.Now().Unix(),
	)
	return err
}

func marshalContent(content render.MessageContent) (string, error) {
	if content.Empty() {
		return "", nil
	}
	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalContent(data string, content *render.MessageContent) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), content)
}
