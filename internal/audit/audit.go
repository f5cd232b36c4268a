package audit

import (
	"context"
	"time"

	"guildpanel/internal/storage"

	"go.uber.org/zap"
)

const (
	ActionWelcomeUpdate  = "welcome_update"
	ActionWelcomeTest    = "welcome_test"
	ActionTemplateCreate = "template_create"
	ActionTemplateUpdate = "template_update"
	ActionTemplateDelete = "template_delete"
	ActionTemplateUse    = "template_use"
	ActionMessageSend    = "message_send"
	ActionRoleCreate     = "role_create"
	ActionChannelCreate  = "channel_create"
	ActionChannelDelete  = "channel_delete"
	ActionSettingsUpdate = "settings_update"
	ActionLicenseChange  = "license_change"
)

// Logger records panel actions to the audit trail and the process log.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) Log(ctx context.Context, serverID, userID, action, details string) {
	entry := storage.AuditLog{
		ServerID:  serverID,
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit write failed", zap.Error(err))
		}
	}
	l.logger.Info("audit",
		zap.String("server_id", serverID),
		zap.String("user_id", userID),
		zap.String("action", action),
		zap.String("details", details),
	)
}

// RunRetention deletes audit rows older than retentionDays once a day until
// the context is cancelled.
func (l *Logger) RunRetention(ctx context.Context, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.store.CleanupAuditLogs(ctx, retentionDays); err != nil {
				l.logger.Warn("audit cleanup failed", zap.Error(err))
			}
		}
	}
}
