package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new in-app notification repository
func NewNotificationRepository(db *sqlstore.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Create inserts an inbox entry
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	n.CreatedAt = nowIfZero(n.CreatedAt)
	id, err := r.db.InsertReturningID(ctx, `
		INSERT INTO notifications (user_id, request_id, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.UserID, nullableID(n.RequestID), n.Message, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification", zap.Int64("user_id", n.UserID), zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	return nil
}

// ListByUser returns the newest notifications of a user first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	query := `SELECT id, user_id, request_id, message, is_read, created_at FROM notifications WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		var requestID sql.NullInt64
		if err := rows.Scan(&n.ID, &n.UserID, &requestID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.RequestID = idPtr(requestID)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkRead flags a notification of userID as read
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`, true, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// SettingsRepository implements port.SettingsRepository
type SettingsRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewSettingsRepository creates a new notification settings repository
func NewSettingsRepository(db *sqlstore.DB, logger *zap.Logger) port.SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// Get returns the stored settings of a user
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (*entity.NotificationSettings, error) {
	var s entity.NotificationSettings
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT user_id, email_enabled, sms_enabled, push_enabled, updated_at
		FROM notification_settings WHERE user_id = ?`, userID).Scan(
		&s.UserID, &s.EmailEnabled, &s.SMSEnabled, &s.PushEnabled, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification settings: %w", err)
	}
	return &s, nil
}

// Upsert stores the settings of a user
func (r *SettingsRepository) Upsert(ctx context.Context, settings *entity.NotificationSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO notification_settings (user_id, email_enabled, sms_enabled, push_enabled, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = excluded.email_enabled,
			sms_enabled = excluded.sms_enabled,
			push_enabled = excluded.push_enabled,
			updated_at = excluded.updated_at`,
		settings.UserID, settings.EmailEnabled, settings.SMSEnabled, settings.PushEnabled, settings.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert notification settings", zap.Int64("user_id", settings.UserID), zap.Error(err))
		return fmt.Errorf("failed to save notification settings: %w", err)
	}
	return nil
}
