package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

type ServerSettings struct {
	ServerID       string `json:"serverId"`
	Name           string `json:"name"`
	WelcomeMessage string `json:"welcomeMessage"`
	AutoRole       string `json:"autoRole"`
}

type BotSettings struct {
	ServerID       string `json:"serverId"`
	Prefix         string `json:"prefix"`
	Language       string `json:"language"`
	LoggingChannel string `json:"loggingChannel"`
}

// FindOrCreateUser registers a panel user on first OAuth login and returns
// the stored record afterwards.
func (s *Store) FindOrCreateUser(ctx context.Context, id, username string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, username, is_admin, created_at FROM users WHERE id = ?`, id)

	var user User
	var isAdmin int
	var created int64
	err := row.Scan(&user.ID, &user.Username, &isAdmin, &created)
	if err == nil {
		user.IsAdmin = isAdmin == 1
		user.CreatedAt = time.Unix(created, 0)
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}

	user = User{ID: id, Username: username, CreatedAt: time.Now()}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, is_admin, created_at) VALUES (?, ?, 0, ?)
	`, user.ID, user.Username, user.CreatedAt.Unix())
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Store) GetServerSettings(ctx context.Context, serverID string) (ServerSettings, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT server_id, name, welcome_message, auto_role
		FROM server_settings WHERE server_id = ?`, serverID)

	var settings ServerSettings
	err := row.Scan(&settings.ServerID, &settings.Name, &settings.WelcomeMessage, &settings.AutoRole)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ServerSettings{}, false, nil
		}
		return ServerSettings{}, false, err
	}
	return settings, true, nil
}

func (s *Store) UpsertServerSettings(ctx context.Context, settings ServerSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_settings (server_id, name, welcome_message, auto_role)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			name = excluded.name,
			welcome_message = excluded.welcome_message,
			auto_role = excluded.auto_role
	`, settings.ServerID, settings.Name, settings.WelcomeMessage, settings.AutoRole)
	return err
}

// EnsureBotSettings returns the server's bot settings, creating the default
// record when none exists.
func (s *Store) EnsureBotSettings(ctx context.Context, serverID string) (BotSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT server_id, prefix, language, logging_channel
		FROM bot_settings WHERE server_id = ?`, serverID)

	var settings BotSettings
	err := row.Scan(&settings.ServerID, &settings.Prefix, &settings.Language, &settings.LoggingChannel)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return BotSettings{}, err
	}

	settings = BotSettings{ServerID: serverID, Prefix: "!", Language: "en"}
	if err := s.UpsertBotSettings(ctx, settings); err != nil {
		return BotSettings{}, err
	}
	return settings, nil
}

func (s *Store) UpsertBotSettings(ctx context.Context, settings BotSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_settings (server_id, prefix, language, logging_channel)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			prefix = excluded.prefix,
			language = excluded.language,
			logging_channel = excluded.logging_channel
	`, settings.ServerID, settings.Prefix, settings.Language, settings.LoggingChannel)
	return err
}
