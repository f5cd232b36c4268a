package storage

import (
	"context"
	"time"
)

// AuditLog records one panel action against a server.
type AuditLog struct {
	ID        int64     `json:"id"`
	ServerID  string    `json:"serverId"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (server_id, user_id, action, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.ServerID, log.UserID, log.Action, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, serverID string, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, server_id, user_id, action, details, created_at
		FROM audit_logs
		WHERE server_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, serverID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.ServerID, &log.UserID, &log.Action, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, cutoff.Unix())
	return err
}
