package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, accountID, action, resource, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("account_id", accountID),
		slog.String("status", status),
		slog.String("details", details),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogRegistration(ctx context.Context, accountID, status, details string) {
	al.LogAction(ctx, accountID, "register", "account", status, details)
}

func (al *Logger) LogLogin(ctx context.Context, accountID, status, details string) {
	al.LogAction(ctx, accountID, "login", "session", status, details)
}

func (al *Logger) LogPasswordChange(ctx context.Context, accountID, status, details string) {
	al.LogAction(ctx, accountID, "change_password", "account", status, details)
}

func (al *Logger) LogAccountDeletion(ctx context.Context, accountID, status, details string) {
	al.LogAction(ctx, accountID, "delete", "account", status, details)
}

func (al *Logger) LogProfileUpdate(ctx context.Context, accountID, status, details string) {
	al.LogAction(ctx, accountID, "update", "profile", status, details)
}

func (al *Logger) LogDenied(ctx context.Context, accountID, reason string) {
	al.LogAction(ctx, accountID, "access_denied", "api", "denied", reason)
}
