package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"guildpanel/internal/render"

	"github.com/google/uuid"
)

const (
	CategoryWelcome       = "welcome"
	CategoryRules         = "rules"
	CategoryEvents        = "events"
	CategoryAnnouncements = "announcements"
	CategoryOther         = "other"
)

func ValidCategory(category string) bool {
	switch category {
	case CategoryWelcome, CategoryRules, CategoryEvents, CategoryAnnouncements, CategoryOther:
		return true
	}
	return false
}

type MessageTemplate struct {
	ID         string                `json:"id"`
	ServerID   string                `json:"serverId"`
	Name       string                `json:"name"`
	Category   string                `json:"category"`
	Content    render.MessageContent `json:"content"`
	Variables  []string              `json:"variables"`
	UsageCount int                   `json:"usageCount"`
	LastUsed   *time.Time            `json:"lastUsed,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

func (s *Store) CreateTemplate(ctx context.Context, template MessageTemplate) (MessageTemplate, error) {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.Category == "" {
		template.Category = CategoryOther
	}
	if template.Variables == nil {
		template.Variables = []string{}
	}
	now := time.Now()
	template.CreatedAt = now
	template.UpdatedAt = now

	contentJSON, err := json.Marshal(template.Content)
	if err != nil {
		return MessageTemplate{}, err
	}
	variablesJSON, err := json.Marshal(template.Variables)
	if err != nil {
		return MessageTemplate{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO message_templates (id, server_id, name, category, content, variables, usage_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, template.ID, template.ServerID, template.Name, template.Category, string(contentJSON), string(variablesJSON), now.Unix(), now.Unix())
	if err != nil {
		return MessageTemplate{}, err
	}
	return template, nil
}

// GetTemplate looks a template up by id scoped to its server; found is false
// when no such row exists.
func (s *Store) GetTemplate(ctx context.Context, serverID, id string) (MessageTemplate, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, server_id, name, category, content, variables, usage_count, last_used, created_at, updated_at
		FROM message_templates WHERE id = ? AND server_id = ?`, id, serverID)

	template, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MessageTemplate{}, false, nil
		}
		return MessageTemplate{}, false, err
	}
	return template, true, nil
}

// ListTemplates returns a server's templates newest first, optionally
// filtered by category.
func (s *Store) ListTemplates(ctx context.Context, serverID, category string) ([]MessageTemplate, error) {
	query := `
		SELECT id, server_id, name, category, content, variables, usage_count, last_used, created_at, updated_at
		FROM message_templates WHERE server_id = ?`
	args := []any{serverID}
	if category != "" && category != "all" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []MessageTemplate{}
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

func (s *Store) UpdateTemplate(ctx context.Context, template MessageTemplate) error {
	contentJSON, err := json.Marshal(template.Content)
	if err != nil {
		return err
	}
	if template.Variables == nil {
		template.Variables = []string{}
	}
	variablesJSON, err := json.Marshal(template.Variables)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE message_templates
		SET name = ?, category = ?, content = ?, variables = ?, updated_at = ?
		WHERE id = ? AND server_id = ?
	`, template.Name, template.Category, string(contentJSON), string(variablesJSON), time.Now().Unix(), template.ID, template.ServerID)
	return err
}

func (s *Store) DeleteTemplate(ctx context.Context, serverID, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM message_templates WHERE id = ? AND server_id = ?`, id, serverID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkTemplateUsed bumps the usage counter and stamps last_used in a single
// statement so concurrent uses never lose an increment.
func (s *Store) MarkTemplateUsed(ctx context.Context, serverID, id string, usedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE message_templates
		SET usage_count = usage_count + 1, last_used = ?
		WHERE id = ? AND server_id = ?
	`, usedAt.Unix(), id, serverID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (MessageTemplate, error) {
	var template MessageTemplate
	var contentJSON, variablesJSON string
	var lastUsed sql.NullInt64
	var created, updated int64

	err := row.Scan(
		&template.ID,
		&template.ServerID,
		&template.Name,
		&template.Category,
		&contentJSON,
		&variablesJSON,
		&template.UsageCount,
		&lastUsed,
		&created,
		&updated,
	)
	if err != nil {
		return MessageTemplate{}, err
	}

	if err := json.Unmarshal([]byte(contentJSON), &template.Content); err != nil {
		return MessageTemplate{}, err
	}
	if err := json.Unmarshal([]byte(variablesJSON), &template.Variables); err != nil {
		return MessageTemplate{}, err
	}
	if lastUsed.Valid {
		used := time.Unix(lastUsed.Int64, 0)
		template.LastUsed = &used
	}
	template.CreatedAt = time.Unix(created, 0)
	template.UpdatedAt = time.Unix(updated, 0)
	return template, nil
}
