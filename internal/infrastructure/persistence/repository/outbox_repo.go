package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
)

// OutboxRepository implements port.OutboxRepository
type OutboxRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewOutboxRepository creates a new notification outbox repository
func NewOutboxRepository(db *sqlstore.DB, logger *zap.Logger) port.OutboxRepository {
	return &OutboxRepository{db: db, logger: logger}
}

const outboxColumns = `
	id, notification_id, user_id, channel, recipient, subject, body,
	status, attempts, last_error, created_at, sent_at
`

// Enqueue inserts a PENDING message
func (r *OutboxRepository) Enqueue(ctx context.Context, msg *entity.OutboxMessage) error {
	msg.CreatedAt = nowIfZero(msg.CreatedAt)
	msg.Status = entity.OutboxStatusPending
	id, err := r.db.InsertReturningID(ctx, `
		INSERT INTO notification_outbox (
			notification_id, user_id, channel, recipient, subject, body, status, attempts, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(msg.NotificationID),
		msg.UserID,
		string(msg.Channel),
		msg.Recipient,
		msg.Subject,
		msg.Body,
		msg.Status,
		0,
		"",
		msg.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to enqueue outbox message",
			zap.Int64("user_id", msg.UserID),
			zap.String("channel", string(msg.Channel)),
			zap.Error(err))
		return fmt.Errorf("failed to enqueue outbox message: %w", err)
	}
	msg.ID = id
	return nil
}

// FetchPending returns up to limit PENDING messages in id order
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	return r.list(ctx, `SELECT `+outboxColumns+` FROM notification_outbox WHERE status = ? ORDER BY id LIMIT ?`,
		entity.OutboxStatusPending, limit)
}

// ListByUser returns every message addressed to a user in id order
func (r *OutboxRepository) ListByUser(ctx context.Context, userID int64) ([]*entity.OutboxMessage, error) {
	return r.list(ctx, `SELECT `+outboxColumns+` FROM notification_outbox WHERE user_id = ? ORDER BY id`, userID)
}

func (r *OutboxRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.OutboxMessage, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var messages []*entity.OutboxMessage
	for rows.Next() {
		var m entity.OutboxMessage
		var notificationID sql.NullInt64
		var sentAt sql.NullTime
		if err := rows.Scan(
			&m.ID, &notificationID, &m.UserID, &m.Channel, &m.Recipient, &m.Subject, &m.Body,
			&m.Status, &m.Attempts, &m.LastError, &m.CreatedAt, &sentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		m.NotificationID = idPtr(notificationID)
		m.SentAt = timePtr(sentAt)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// MarkSent records a successful delivery
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = ?, attempts = attempts + 1, last_error = ?, sent_at = ?
		WHERE id = ?`,
		entity.OutboxStatusSent, "", sentAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt; the message turns FAILED at maxAttempts
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, errMsg string, maxAttempts int) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE notification_outbox
		SET attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?`,
		errMsg, maxAttempts, entity.OutboxStatusFailed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message failed: %w", err)
	}
	return nil
}
